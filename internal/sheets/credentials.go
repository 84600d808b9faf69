package sheets

import (
	"fmt"
	"strings"
)

const (
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	DefaultScope    = "https://www.googleapis.com/auth/spreadsheets"
	DefaultBaseURL  = "https://sheets.googleapis.com/v4"
)

// Credentials identify the service account used for the bearer-assertion flow.
type Credentials struct {
	ClientEmail string
	PrivateKey  string
	TokenURL    string
	Scope       string
}

// NormalizePrivateKey undoes the usual damage done to a PEM key stored in an
// environment variable: surrounding quotes and literal "\n" sequences.
func NormalizePrivateKey(raw string) string {
	key := strings.TrimSpace(raw)
	if len(key) >= 2 {
		first, last := key[0], key[len(key)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			key = key[1 : len(key)-1]
		}
	}
	key = strings.ReplaceAll(key, `\r\n`, "\n")
	key = strings.ReplaceAll(key, `\n`, "\n")
	return strings.TrimSpace(key)
}

func (c Credentials) validate() error {
	if c.ClientEmail == "" {
		return fmt.Errorf("%w: client email is required", ErrConfiguration)
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("%w: private key is required", ErrConfiguration)
	}
	if c.TokenURL == "" {
		return fmt.Errorf("%w: token URL is required", ErrConfiguration)
	}
	return nil
}

func (c Credentials) scope() string {
	if c.Scope == "" {
		return DefaultScope
	}
	return c.Scope
}
