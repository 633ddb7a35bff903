package domain

// Credentials identify the archive server. The API key is stored as entered
// and encoded only when attached to a request.
type Credentials struct {
	ServerURL string `json:"server_url" validate:"required,http_url"`
	APIKey    string `json:"api_key" validate:"max=512"`
}

// Configured reports whether a server has been set.
func (c Credentials) Configured() bool {
	return c.ServerURL != ""
}
