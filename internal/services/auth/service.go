// Package auth signs in to DSM and manages the API session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/TheMichaelB/synoexport/internal/creds"
	"github.com/TheMichaelB/synoexport/internal/events"
	"github.com/TheMichaelB/synoexport/internal/models"
	"github.com/TheMichaelB/synoexport/internal/services/totp"
	"github.com/TheMichaelB/synoexport/internal/transport"
)

// DSM session name used by the Drive application.
const sessionName = "SynologyDrive"

// DSM login error codes.
const (
	codeInvalidCredentials = 400
	codeAccountDisabled    = 401
	codePermissionDenied   = 402
	codeOTPRequired        = 403
	codeOTPInvalid         = 404
)

var otpCodePattern = regexp.MustCompile(`^\d{6}$`)

// Service handles DSM authentication.
type Service struct {
	transport transport.Transport
	totp      *totp.Service
	logger    *events.Logger

	account string
}

// NewService creates an auth service.
func NewService(transport transport.Transport, logger *events.Logger) *Service {
	return &Service{
		transport: transport,
		totp:      totp.NewService(),
		logger:    logger.WithField("service", "auth"),
	}
}

// Login authenticates against SYNO.API.Auth and installs the session
// id on the transport. The OTP value may be a literal 6-digit code or
// a TOTP secret to derive one from.
func (s *Service) Login(ctx context.Context, c *creds.Credentials) error {
	if c == nil || !c.Complete() {
		return fmt.Errorf("username and password required")
	}

	params := url.Values{}
	params.Set("account", c.Username)
	params.Set("passwd", c.Password)
	params.Set("session", sessionName)
	params.Set("format", "sid")

	otpCode, err := s.otpCode(c)
	if err != nil {
		return err
	}
	if otpCode != "" {
		params.Set("otp_code", otpCode)
		s.logger.WithField("account", c.Username).Info("Logging in with OTP")
	} else {
		s.logger.WithField("account", c.Username).Info("Logging in")
	}

	data, err := s.transport.CallAPI(ctx, transport.APIRequest{
		Path:    "auth.cgi",
		API:     "SYNO.API.Auth",
		Method:  "login",
		Version: 6,
		Params:  params,
	})
	if err != nil {
		return s.loginError(err)
	}

	var resp struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if resp.SID == "" {
		return fmt.Errorf("invalid login response: missing sid")
	}

	s.account = c.Username
	s.transport.SetSession(resp.SID)

	s.logger.Info("Login successful")
	return nil
}

// Logout terminates the DSM session. Errors are logged, not returned:
// the session expires on its own either way.
func (s *Service) Logout(ctx context.Context) {
	if s.transport.Session() == "" {
		return
	}

	s.logger.Info("Logging out")

	params := url.Values{}
	params.Set("session", sessionName)

	if _, err := s.transport.CallAPI(ctx, transport.APIRequest{
		Path:    "auth.cgi",
		API:     "SYNO.API.Auth",
		Method:  "logout",
		Version: 6,
		Params:  params,
	}); err != nil {
		s.logger.WithError(err).Warn("Server logout failed")
	}

	s.account = ""
	s.transport.SetSession("")
}

// Account returns the signed-in account name.
func (s *Service) Account() string {
	return s.account
}

// LoggedIn reports whether a session is active.
func (s *Service) LoggedIn() bool {
	return s.transport.Session() != ""
}

// otpCode resolves the OTP value to a 6-digit code. Anything that is
// not a literal code is treated as a TOTP secret.
func (s *Service) otpCode(c *creds.Credentials) (string, error) {
	if c.OTP != "" {
		if otpCodePattern.MatchString(c.OTP) {
			return c.OTP, nil
		}
		code, err := s.totp.GenerateCode(c.OTP)
		if err != nil {
			return "", fmt.Errorf("generate OTP code: %w", err)
		}
		return code, nil
	}

	if c.TOTPSecret != "" {
		code, err := s.totp.GenerateCode(c.TOTPSecret)
		if err != nil {
			return "", fmt.Errorf("generate OTP code: %w", err)
		}
		return code, nil
	}

	return "", nil
}

// loginError translates DSM auth error codes into actionable messages.
func (s *Service) loginError(err error) error {
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("login request: %w", err)
	}

	switch apiErr.Code {
	case codeInvalidCredentials:
		return fmt.Errorf("login failed: invalid username or password")
	case codeAccountDisabled:
		return fmt.Errorf("login failed: account disabled")
	case codePermissionDenied:
		return fmt.Errorf("login failed: account lacks permission")
	case codeOTPRequired:
		return fmt.Errorf("login failed: %w", models.ErrOTPRequired)
	case codeOTPInvalid:
		return fmt.Errorf("login failed: invalid OTP code")
	default:
		return fmt.Errorf("login failed: %w", apiErr)
	}
}
