package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/validation"
)

type credentialsRequest struct {
	ServerURL string `json:"server_url" validate:"required,http_url"`
	APIKey    string `json:"api_key" validate:"max=256"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(credentialsRequest{ServerURL: "http://192.168.1.20:3000", APIKey: "secret"})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       credentialsRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing url",
			req:       credentialsRequest{},
			wantField: "server_url",
			wantMsg:   "is required",
		},
		{
			name:      "not a url",
			req:       credentialsRequest{ServerURL: "lanraragi"},
			wantField: "server_url",
			wantMsg:   "must be a valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("https://example.com/g/123", "required,http_url"))

	err := v.Var("", "required,http_url")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
