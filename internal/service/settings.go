package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lanreader/lanreader/internal/domain"
	apperrors "github.com/lanreader/lanreader/internal/errors"
	"github.com/lanreader/lanreader/internal/lanraragi"
	"github.com/lanreader/lanreader/internal/validation"
)

// CredentialStore persists the server credentials.
type CredentialStore interface {
	Credentials(ctx context.Context) (domain.Credentials, error)
	SaveCredentials(ctx context.Context, creds domain.Credentials) error
}

// SettingsService owns the server credentials and keeps the live client in
// step with them.
type SettingsService struct {
	settings  CredentialStore
	remote    Remote
	validator *validation.Validator
	logger    *slog.Logger
}

// NewSettingsService creates a settings service.
func NewSettingsService(settings CredentialStore, remote Remote, validator *validation.Validator, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		settings:  settings,
		remote:    remote,
		validator: validator,
		logger:    logger,
	}
}

// Credentials returns the saved credentials, or the configured defaults.
func (s *SettingsService) Credentials(ctx context.Context) (domain.Credentials, error) {
	creds, err := s.settings.Credentials(ctx)
	if err != nil {
		return domain.Credentials{}, apperrors.Persistence("load credentials", err)
	}
	return creds, nil
}

// Apply pushes the stored credentials to the client.
func (s *SettingsService) Apply(ctx context.Context) error {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return err
	}
	if err := s.remote.SetCredentials(creds.ServerURL, creds.APIKey); err != nil {
		return apperrors.Validation("stored server url is invalid").WithCause(err)
	}
	return nil
}

// UpdateCredentials validates, persists and applies new credentials. The
// running client uses them from its next request on.
func (s *SettingsService) UpdateCredentials(ctx context.Context, serverURL, apiKey string) error {
	creds := domain.Credentials{
		ServerURL: strings.TrimSpace(serverURL),
		APIKey:    strings.TrimSpace(apiKey),
	}
	if err := s.validator.Validate(creds); err != nil {
		return err
	}

	if err := s.remote.SetCredentials(creds.ServerURL, creds.APIKey); err != nil {
		return apperrors.Validation("invalid server url").WithCause(err)
	}
	if err := s.settings.SaveCredentials(ctx, creds); err != nil {
		return apperrors.Persistence("save credentials", err)
	}

	s.logger.Info("credentials updated", "server_url", creds.ServerURL)
	return nil
}

// Verify checks connectivity and the API key against the server.
func (s *SettingsService) Verify(ctx context.Context) (*lanraragi.Info, error) {
	info, err := s.remote.Info(ctx)
	if err != nil {
		return nil, apperrors.FromRemote("verify server", err)
	}
	return info, nil
}
