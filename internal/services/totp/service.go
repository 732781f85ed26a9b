// Package totp generates one-time codes for NAS accounts with
// two-factor authentication enabled.
package totp

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// Service generates TOTP codes from a shared secret.
type Service struct {
	period uint
}

// NewService creates a TOTP service with the standard 30-second window.
func NewService() *Service {
	return &Service{period: 30}
}

// GenerateCode generates a code for the current time.
func (s *Service) GenerateCode(secret string) (string, error) {
	return s.GenerateCodeAtTime(secret, time.Now())
}

// GenerateCodeAtTime generates a code for a specific time.
func (s *Service) GenerateCodeAtTime(secret string, t time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("totp: secret cannot be empty")
	}

	code, err := totp.GenerateCode(secret, t)
	if err != nil {
		return "", fmt.Errorf("totp: generate code: %w", err)
	}

	return code, nil
}

// IsValidSecret checks that a secret can produce codes.
func (s *Service) IsValidSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("totp: secret cannot be empty")
	}

	if _, err := totp.GenerateCode(secret, time.Now()); err != nil {
		return fmt.Errorf("totp: invalid secret format: %w", err)
	}

	return nil
}

// TimeRemaining returns how long the current code stays valid.
func (s *Service) TimeRemaining() time.Duration {
	now := time.Now()
	window := now.Unix() / int64(s.period)
	next := (window + 1) * int64(s.period)

	return time.Unix(next, 0).Sub(now)
}
