package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "JBSWY3DPEHPK3PXP"

func TestGenerateCodeDeterministic(t *testing.T) {
	svc := NewService()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	code1, err := svc.GenerateCodeAtTime(testSecret, at)
	require.NoError(t, err)
	assert.Len(t, code1, 6)

	code2, err := svc.GenerateCodeAtTime(testSecret, at)
	require.NoError(t, err)
	assert.Equal(t, code1, code2)

	// A different window yields a different code.
	code3, err := svc.GenerateCodeAtTime(testSecret, at.Add(90*time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, code1, code3)
}

func TestGenerateCodeEmptySecret(t *testing.T) {
	svc := NewService()

	_, err := svc.GenerateCode("")
	assert.Error(t, err)
}

func TestIsValidSecret(t *testing.T) {
	svc := NewService()

	assert.NoError(t, svc.IsValidSecret(testSecret))
	assert.Error(t, svc.IsValidSecret(""))
	assert.Error(t, svc.IsValidSecret("not-base32!!!"))
}

func TestTimeRemaining(t *testing.T) {
	svc := NewService()

	remaining := svc.TimeRemaining()
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 30*time.Second)
}
