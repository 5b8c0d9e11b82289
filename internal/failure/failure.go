package failure

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	w2hsdk "fivew2h/sdk/go"
)

// Kind groups failures by how the caller recovers from them.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindValidation   Kind = "validation"
	KindAuth         Kind = "auth"
	KindPrecondition Kind = "precondition"
	KindPartial      Kind = "partial"
	KindServer       Kind = "server"
)

const (
	GenericNetworkMessage = "could not reach the server; try again"
	GenericServerMessage  = "the server could not complete the request"
	GenericAuthMessage    = "session expired or invalid; log in again"
)

// NetworkFailure covers rejected requests and non-2xx answers without a
// readable body.
type NetworkFailure struct {
	Status int
	Cause  error
}

func (e *NetworkFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", GenericNetworkMessage, e.Cause)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", GenericNetworkMessage, e.Status)
	}
	return GenericNetworkMessage
}

func (e *NetworkFailure) Unwrap() error { return e.Cause }

// ServerFailure is a non-2xx answer that carried a message.
type ServerFailure struct {
	Status  int
	Message string
}

func (e *ServerFailure) Error() string { return e.Message }

// ValidationFailure is a client-detected form problem, keyed by field name.
type ValidationFailure struct {
	Fields map[string]string
}

func (e *ValidationFailure) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Field returns the annotation for one field, if any.
func (e *ValidationFailure) Field(name string) (string, bool) {
	msg, ok := e.Fields[name]
	return msg, ok
}

// AuthFailure means the stored token must be discarded.
type AuthFailure struct {
	Reason string
}

func (e *AuthFailure) Error() string {
	if e.Reason == "" {
		return GenericAuthMessage
	}
	return e.Reason
}

// PreconditionFailure blocks a transition on the client with a visible reason.
type PreconditionFailure struct {
	Operation string
	Reason    string
}

func (e *PreconditionFailure) Error() string {
	if e.Operation == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Reason)
}

// PartialFailure reports an action that was created but never attached to
// its project. ActionID is kept for manual recovery; retrying creation would
// produce a duplicate.
type PartialFailure struct {
	ActionID  string
	ProjectID string
	Cause     error
}

func (e *PartialFailure) Error() string {
	msg := fmt.Sprintf("action %s created but not linked to project %s", e.ActionID, e.ProjectID)
	if e.Cause != nil {
		msg += ": " + Message(e.Cause)
	}
	return msg
}

func (e *PartialFailure) Unwrap() error { return e.Cause }

// Precondition is a shorthand constructor.
func Precondition(op, reason string) error {
	return &PreconditionFailure{Operation: op, Reason: reason}
}

// Classify maps SDK and transport errors onto the failure taxonomy. Errors
// that already belong to it are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	var apiErr *w2hsdk.APIError
	if errors.As(err, &apiErr) {
		msg := bodyMessage(apiErr.Body)
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return &AuthFailure{Reason: msg}
		case msg == "":
			return &NetworkFailure{Status: apiErr.StatusCode}
		default:
			return &ServerFailure{Status: apiErr.StatusCode, Message: msg}
		}
	}
	return &NetworkFailure{Cause: err}
}

// KindOf returns the taxonomy kind of err, or "" when err is unclassified.
func KindOf(err error) Kind {
	var (
		nf *NetworkFailure
		sf *ServerFailure
		vf *ValidationFailure
		af *AuthFailure
		pf *PreconditionFailure
		pa *PartialFailure
	)
	switch {
	case errors.As(err, &pa):
		return KindPartial
	case errors.As(err, &vf):
		return KindValidation
	case errors.As(err, &af):
		return KindAuth
	case errors.As(err, &pf):
		return KindPrecondition
	case errors.As(err, &sf):
		return KindServer
	case errors.As(err, &nf):
		return KindNetwork
	}
	return ""
}

// IsAuth reports whether err requires clearing the session.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// Message is the text shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *w2hsdk.APIError
	if errors.As(err, &apiErr) {
		if msg := bodyMessage(apiErr.Body); msg != "" {
			return msg
		}
	}
	var nf *NetworkFailure
	if errors.As(err, &nf) {
		return GenericNetworkMessage
	}
	var sf *ServerFailure
	if errors.As(err, &sf) && sf.Message == "" {
		return GenericServerMessage
	}
	if KindOf(err) == "" {
		return GenericServerMessage
	}
	return err.Error()
}

// bodyMessage extracts a readable message from a response body: the common
// JSON envelope fields first, then the raw text.
func bodyMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	if strings.HasPrefix(body, "{") {
		var env map[string]json.RawMessage
		if err := json.Unmarshal([]byte(body), &env); err == nil {
			for _, key := range []string{"message", "error", "title", "detail"} {
				raw, ok := env[key]
				if !ok {
					continue
				}
				var s string
				if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
				var nested struct {
					Message string `json:"message"`
				}
				if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
					return nested.Message
				}
			}
			if raw, ok := env["errors"]; ok {
				return strings.TrimSpace(string(raw))
			}
			return ""
		}
	}
	if strings.HasPrefix(strings.ToLower(body), "<!doctype") || strings.HasPrefix(body, "<html") {
		return ""
	}
	return body
}
