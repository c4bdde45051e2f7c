package planner

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an IntegrationError for display.
type Kind int

const (
	// KindTransport covers network failures and unexpected HTTP statuses.
	// Shown inline at the step that failed; retry is pressing the button again.
	KindTransport Kind = iota
	// KindPermission means the integration is configured but the caller lacks rights.
	KindPermission
	// KindConfiguration means the integration has not been set up at all.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindConfiguration:
		return "configuration"
	default:
		return "transport"
	}
}

// IntegrationError is returned by every Client call that fails.
type IntegrationError struct {
	Kind      Kind
	Op        string // e.g. "create channel"
	Status    int    // HTTP status, 0 when the request never completed
	RequestID string
	Message   string // server supplied message, if any
	Hint      string // remediation hint for permission errors
	Payload   string // summary of the attempted request body
	Err       error
}

func (e *IntegrationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" && e.Status != 0 {
		msg = http.StatusText(e.Status)
	}
	s := e.Op + ": " + msg
	if e.Status != 0 {
		s = fmt.Sprintf("%s (http %d)", s, e.Status)
	}
	if e.RequestID != "" {
		s += " [request " + e.RequestID + "]"
	}
	return s
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// Classify returns the kind of err. Errors that did not come from the client
// are treated as transport failures.
func Classify(err error) Kind {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindTransport
}

// IsPermission reports whether err is a permission failure.
func IsPermission(err error) bool {
	return err != nil && Classify(err) == KindPermission
}

// IsConfiguration reports whether err means the integration is not set up.
func IsConfiguration(err error) bool {
	return err != nil && Classify(err) == KindConfiguration
}

// Hint returns the server supplied remediation hint attached to err, if any.
func Hint(err error) string {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Hint
	}
	return ""
}

// errorBody is the error envelope returned by the API on non-2xx responses.
type errorBody struct {
	Message         string `json:"message"`
	Error           string `json:"error"`
	Hint            string `json:"hint"`
	Configured      *bool  `json:"configured"`
	PermissionIssue bool   `json:"permissionIssue"`
}

func kindFor(status int, body errorBody) Kind {
	switch {
	case body.Configured != nil && !*body.Configured:
		return KindConfiguration
	case body.PermissionIssue, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindPermission
	default:
		return KindTransport
	}
}
