package sheets

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("service account configuration error")
	ErrFormat        = errors.New("private key format error")
	ErrCrypto        = errors.New("assertion signing error")
	ErrAuth          = errors.New("token exchange rejected")
	ErrSheetNotFound = errors.New("sheet not found")
	ErrWrite         = errors.New("spreadsheet write failed")
	ErrRead          = errors.New("spreadsheet read failed")
)

// APIError carries a non-success response from the spreadsheet or token endpoint.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
