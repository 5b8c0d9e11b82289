// Package session is the single owner of the stored bearer token. Claims are
// decoded from storage on every read; nothing derived from a token outlives
// a logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"fivew2h/internal/domain"
	"fivew2h/internal/failure"
	"fivew2h/internal/forms"
	"fivew2h/internal/identity"
	w2hsdk "fivew2h/sdk/go"
)

// Reasons attached to AuthFailure.
const (
	ReasonLoggedOut      = "not logged in"
	ReasonExpired        = "session expired; log in again"
	ReasonUnreadable     = "stored session is unreadable; log in again"
	ReasonMissingClaims  = "token lacks role or user id"
	ReasonBadCredentials = "invalid email or password"
)

// TokenStore persists the bearer token under one key.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// UserLookup fetches a user profile.
type UserLookup interface {
	GetUser(ctx context.Context, id domain.ID) (domain.User, error)
}

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Session is passed to every component that needs the caller's identity.
type Session struct {
	Store TokenStore
	Users UserLookup
	Now   func() time.Time
	Log   logrus.FieldLogger

	derived *cache.Cache
}

// DerivedTTL bounds how long looked-up profile data is reused.
const DerivedTTL = 5 * time.Minute

func New(store TokenStore, users UserLookup) *Session {
	return &Session{
		Store:   store,
		Users:   users,
		Now:     time.Now,
		derived: cache.New(DerivedTTL, 0),
	}
}

func (s *Session) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Session) log() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (s *Session) memo() *cache.Cache {
	if s.derived == nil {
		s.derived = cache.New(DerivedTTL, 0)
	}
	return s.derived
}

// BearerToken implements w2hsdk.TokenSource. It returns "" when no usable
// session exists.
func (s *Session) BearerToken() string {
	tok, err := s.Store.LoadToken(context.Background())
	if err != nil {
		s.log().WithError(err).Warn("read stored token")
		return ""
	}
	return tok
}

// Claims decodes the stored token. A missing, unreadable, incomplete or
// expired token yields an AuthFailure; the unusable token is cleared.
func (s *Session) Claims(ctx context.Context) (identity.Claims, error) {
	tok, err := s.Store.LoadToken(ctx)
	if err != nil {
		return identity.Claims{}, fmt.Errorf("load token: %w", err)
	}
	if tok == "" {
		return identity.Claims{}, &failure.AuthFailure{Reason: ReasonLoggedOut}
	}
	claims, err := identity.Decode(tok)
	if err != nil {
		return identity.Claims{}, s.drop(ctx, ReasonUnreadable)
	}
	switch {
	case !claims.HasRole() || !claims.HasUserID():
		return claims, s.drop(ctx, ReasonMissingClaims)
	case claims.Expired(s.now()):
		return claims, s.drop(ctx, ReasonExpired)
	}
	return claims, nil
}

// Peek decodes the stored token without enforcing validity. The zero Claims
// is returned when nothing readable is stored.
func (s *Session) Peek(ctx context.Context) identity.Claims {
	tok, err := s.Store.LoadToken(ctx)
	if err != nil || tok == "" {
		return identity.Claims{}
	}
	claims, _ := identity.Decode(tok)
	return claims
}

func (s *Session) drop(ctx context.Context, reason string) error {
	if err := s.Logout(ctx); err != nil {
		return err
	}
	return &failure.AuthFailure{Reason: reason}
}

// Login validates the form, exchanges the credentials and stores the token.
// A bad-credentials answer and a server error produce distinct failures,
// both distinct from a network failure.
func (s *Session) Login(ctx context.Context, auth Authenticator, form forms.LoginForm) (identity.Claims, error) {
	if err := form.Check(); err != nil {
		return identity.Claims{}, err
	}
	tok, err := auth.Login(ctx, form.Email, form.Password)
	if err != nil {
		return identity.Claims{}, loginFailure(err)
	}
	return s.Start(ctx, tok)
}

// Start stores tok after checking it carries a usable identity.
func (s *Session) Start(ctx context.Context, tok string) (identity.Claims, error) {
	claims, err := identity.Decode(tok)
	if err != nil {
		return identity.Claims{}, &failure.AuthFailure{Reason: ReasonUnreadable}
	}
	if !claims.Authenticated(s.now()) {
		return claims, &failure.AuthFailure{Reason: ReasonMissingClaims}
	}
	s.memo().Flush()
	if err := s.Store.SaveToken(ctx, tok); err != nil {
		return claims, fmt.Errorf("save token: %w", err)
	}
	s.log().WithFields(logrus.Fields{"user_id": claims.UserID, "role": claims.Role}).Info("logged in")
	return claims, nil
}

// Logout clears the token and every value derived from it.
func (s *Session) Logout(ctx context.Context) error {
	s.memo().Flush()
	if err := s.Store.ClearToken(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Check inspects a request failure and ends the session when the backend
// rejected the token. It returns err classified.
func (s *Session) Check(ctx context.Context, err error) error {
	err = failure.Classify(err)
	if failure.IsAuth(err) {
		if lerr := s.Logout(ctx); lerr != nil {
			s.log().WithError(lerr).Warn("logout after auth failure")
		}
	}
	return err
}

// Me returns the caller's profile, cached until logout.
func (s *Session) Me(ctx context.Context) (domain.User, error) {
	claims, err := s.Claims(ctx)
	if err != nil {
		return domain.User{}, err
	}
	return s.user(ctx, claims.UserID)
}

// DepartmentOf implements nav.DepartmentResolver.
func (s *Session) DepartmentOf(ctx context.Context, userID domain.ID) (domain.ID, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.DepartmentID, nil
}

func (s *Session) user(ctx context.Context, id domain.ID) (domain.User, error) {
	key := "user:" + id.String()
	if v, ok := s.memo().Get(key); ok {
		return v.(domain.User), nil
	}
	if s.Users == nil {
		return domain.User{}, errors.New("no user lookup configured")
	}
	u, err := s.Users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, s.Check(ctx, err)
	}
	s.memo().Set(key, u, cache.DefaultExpiration)
	return u, nil
}

func loginFailure(err error) error {
	var apiErr *w2hsdk.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return &failure.AuthFailure{Reason: ReasonBadCredentials}
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return &failure.ServerFailure{Status: apiErr.StatusCode, Message: failure.Message(err)}
		}
	}
	return failure.Classify(err)
}
