// Package creds resolves NAS credentials from flags, files, the
// environment, and interactive prompts.
package creds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// Credentials holds everything needed to sign in to the NAS.
type Credentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	OTP        string `json:"otp,omitempty"`
	TOTPSecret string `json:"totp_secret,omitempty"`
}

// Complete reports whether username and password are both set.
func (c *Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// ParseFile parses a JSON credentials file.
func ParseFile(data []byte) (*Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &c, nil
}

// LoadFromFile loads credentials from a local JSON file.
func LoadFromFile(path string) (*Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFile(b)
}

// Resolver merges credential sources in precedence order and prompts
// for anything still missing.
type Resolver struct {
	// AllowPrompt enables interactive prompts on a terminal.
	AllowPrompt bool

	// CredentialsFile is an optional JSON file consulted after
	// explicit values and the environment.
	CredentialsFile string

	// prompt hooks, replaceable in tests
	promptLine     func(label string) (string, error)
	promptPassword func(label string) (string, error)
}

// NewResolver creates a resolver with interactive prompts enabled.
func NewResolver(credentialsFile string) *Resolver {
	return &Resolver{
		AllowPrompt:     true,
		CredentialsFile: credentialsFile,
		promptLine:      promptLine,
		promptPassword:  promptPassword,
	}
}

// Resolve fills in missing fields of explicit, in order: environment,
// credentials file, then interactive prompt. The explicit values win.
func (r *Resolver) Resolve(explicit Credentials) (*Credentials, error) {
	out := explicit

	merge(&out, envCredentials())

	if r.CredentialsFile != "" {
		fileCreds, err := LoadFromFile(r.CredentialsFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			merge(&out, *fileCreds)
		}
	}

	if out.Complete() {
		return &out, nil
	}

	if !r.AllowPrompt || !term.IsTerminal(int(syscall.Stdin)) {
		return nil, fmt.Errorf("username and password required (set SYNOEXPORT_USERNAME / SYNOEXPORT_PASSWORD or pass flags)")
	}

	return r.resolveWithPrompt(out)
}

// resolveWithPrompt asks for any fields still missing.
func (r *Resolver) resolveWithPrompt(out Credentials) (*Credentials, error) {
	if out.Username == "" {
		username, err := r.promptLine("NAS username")
		if err != nil {
			return nil, err
		}
		out.Username = username
	}

	if out.Password == "" {
		password, err := r.promptPassword("NAS password")
		if err != nil {
			return nil, err
		}
		out.Password = password
	}

	if !out.Complete() {
		return nil, fmt.Errorf("username and password required")
	}

	return &out, nil
}

// merge copies fields from src into dst where dst is empty.
func merge(dst *Credentials, src Credentials) {
	if dst.Username == "" {
		dst.Username = src.Username
	}
	if dst.Password == "" {
		dst.Password = src.Password
	}
	if dst.OTP == "" {
		dst.OTP = src.OTP
	}
	if dst.TOTPSecret == "" {
		dst.TOTPSecret = src.TOTPSecret
	}
}

// envCredentials reads credentials from the environment, including the
// variable names the Python exporter used.
func envCredentials() Credentials {
	return Credentials{
		Username:   firstEnv("SYNOEXPORT_USERNAME", "SYNOLOGY_NAS_USER"),
		Password:   firstEnv("SYNOEXPORT_PASSWORD", "SYNOLOGY_NAS_PASS"),
		OTP:        firstEnv("SYNOEXPORT_OTP"),
		TOTPSecret: firstEnv("SYNOEXPORT_TOTP_SECRET"),
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func promptLine(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)

	var value string
	if _, err := fmt.Scanln(&value); err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(value), nil
}

func promptPassword(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)

	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(data), nil
}
