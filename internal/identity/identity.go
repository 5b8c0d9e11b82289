// Package identity reads the claims carried by a bearer token.
//
// Nothing here verifies a signature. The claims only drive what the client
// shows; the backend re-checks every request.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"fivew2h/internal/domain"
)

// Long-form claim keys issued by the backend.
const (
	RoleClaim           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	NameIdentifierClaim = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	NameClaim           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	EmailClaim          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
)

// ErrMalformed is wrapped by every DecodeError.
var ErrMalformed = errors.New("malformed token")

// DecodeError explains why a token could not be read.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrMalformed, e.Stage)
	}
	return fmt.Sprintf("%s: %s: %v", ErrMalformed, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrMalformed, e.Err} }

// Claims is the typed view of a token payload. Zero fields mean the claim was
// absent or unusable.
type Claims struct {
	Role      domain.Role
	RawRole   string
	UserID    domain.ID
	Name      string
	Email     string
	ExpiresAt time.Time
	Raw       jwt.MapClaims
}

func (c Claims) HasRole() bool   { return c.Role != "" }
func (c Claims) HasUserID() bool { return !c.UserID.IsZero() }

// Expired reports whether an exp claim exists and lies before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Authenticated is true when both role and user id are present and the token
// has not expired.
func (c Claims) Authenticated(now time.Time) bool {
	return c.HasRole() && c.HasUserID() && !c.Expired(now)
}

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode reads the payload segment of a three-part token. It never panics;
// every malformed input yields a *DecodeError.
func Decode(token string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return Claims{}, &DecodeError{Stage: fmt.Sprintf("expected 3 segments, got %d", len(parts))}
	}
	// Accept both base64 alphabets by folding the standard one onto the URL one.
	seg := strings.NewReplacer("+", "-", "/", "_").Replace(parts[1])
	payload, err := parser.DecodeSegment(seg)
	if err != nil {
		return Claims{}, &DecodeError{Stage: "base64", Err: err}
	}
	if !utf8.Valid(payload) {
		return Claims{}, &DecodeError{Stage: "utf-8"}
	}
	raw := jwt.MapClaims{}
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Claims{}, &DecodeError{Stage: "payload", Err: err}
	}
	return fromMap(raw), nil
}

func fromMap(raw jwt.MapClaims) Claims {
	c := Claims{Raw: raw}
	c.RawRole = firstString(raw[RoleClaim])
	c.Role = domain.ParseRole(c.RawRole)
	if c.Role == "" {
		// Multi-role tokens carry an array; keep the first known role.
		if list, ok := raw[RoleClaim].([]any); ok {
			for _, v := range list {
				if r := domain.ParseRole(fmt.Sprint(v)); r != "" {
					c.Role = r
					c.RawRole = string(r)
					break
				}
			}
		}
	}
	c.UserID = domain.ID(firstString(raw[NameIdentifierClaim]))
	if c.UserID == "" {
		if sub, err := raw.GetSubject(); err == nil {
			c.UserID = domain.ID(sub)
		}
	}
	c.Name = firstString(raw[NameClaim])
	c.Email = firstString(raw[EmailClaim])
	if exp, err := raw.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return fmt.Sprintf("%.0f", t)
	case []any:
		if len(t) > 0 {
			return firstString(t[0])
		}
	}
	return ""
}
