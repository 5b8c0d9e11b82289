// Package tracker runs the lifecycle view-models against the backend. It is
// the only place where effects turn into requests.
package tracker

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fivew2h/internal/domain"
	"fivew2h/internal/events"
	"fivew2h/internal/failure"
	"fivew2h/internal/identity"
	w2hsdk "fivew2h/sdk/go"
)

// API is the part of the backend client the tracker drives.
type API interface {
	ListProjects(ctx context.Context, params w2hsdk.ListParams) (w2hsdk.Page[domain.Project], error)
	ListOwnProjects(ctx context.Context, userID domain.ID) (w2hsdk.Page[domain.Project], error)
	ListDepartmentProjects(ctx context.Context, departmentID domain.ID, params w2hsdk.ListParams) (w2hsdk.Page[domain.Project], error)
	GetProject(ctx context.Context, id domain.ID) (domain.Project, error)
	CreateProject(ctx context.Context, in w2hsdk.ProjectInput) (domain.Project, error)
	UpdateProject(ctx context.Context, id domain.ID, in w2hsdk.ProjectInput) (*domain.Project, error)
	StartProject(ctx context.Context, id domain.ID) (*domain.Project, error)
	CompleteProject(ctx context.Context, id domain.ID, conclusion string) (*domain.Project, error)
	DeleteProject(ctx context.Context, id domain.ID) error
	SetProjectConclusion(ctx context.Context, id domain.ID, text string) error
	AttachAction(ctx context.Context, projectID, actionID domain.ID) error

	ListActions(ctx context.Context) ([]domain.Action, error)
	GetAction(ctx context.Context, id domain.ID) (domain.Action, error)
	CreateAction(ctx context.Context, in w2hsdk.ActionInput) (domain.Action, error)
	UpdateAction(ctx context.Context, id domain.ID, in w2hsdk.ActionInput) (*domain.Action, error)
	StartAction(ctx context.Context, id domain.ID) (*domain.Action, error)
	CompleteAction(ctx context.Context, id domain.ID, conclusion string) (*domain.Action, error)
	DeleteAction(ctx context.Context, id domain.ID) error
	SetActionConclusion(ctx context.Context, id domain.ID, text string) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id domain.ID) (domain.User, error)
	CreateUser(ctx context.Context, in w2hsdk.UserInput) (domain.User, error)
	UpdateUser(ctx context.Context, id domain.ID, in w2hsdk.UserInput) error
	DeleteUser(ctx context.Context, id domain.ID) error
	ChangePassword(ctx context.Context, req w2hsdk.ChangePasswordRequest) error

	ListDepartments(ctx context.Context) ([]domain.Department, error)
	GetDepartment(ctx context.Context, id domain.ID) (domain.Department, error)
	CreateDepartment(ctx context.Context, in w2hsdk.DepartmentInput) (domain.Department, error)
	UpdateDepartment(ctx context.Context, id domain.ID, in w2hsdk.DepartmentInput) error
}

// Identity is the session as seen by the tracker.
type Identity interface {
	Peek(ctx context.Context) identity.Claims
	Check(ctx context.Context, err error) error
}

// Recorder appends to the local activity log.
type Recorder interface {
	Append(ctx context.Context, tx *sql.Tx, e events.Entry) error
}

// DefaultFetchSize is the page size used to pull whole collections before
// paginating locally.
const DefaultFetchSize = 100

type Tracker struct {
	API       API
	Identity  Identity
	Activity  Recorder
	Log       logrus.FieldLogger
	Now       func() time.Time
	FetchSize int

	mu       sync.Mutex
	inflight map[string]bool
}

func New(api API, id Identity, activity Recorder) *Tracker {
	return &Tracker{API: api, Identity: id, Activity: activity, Now: time.Now, FetchSize: DefaultFetchSize}
}

func (t *Tracker) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

func (t *Tracker) log() logrus.FieldLogger {
	if t.Log != nil {
		return t.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (t *Tracker) fetchSize() int {
	if t.FetchSize <= 0 {
		return DefaultFetchSize
	}
	return t.FetchSize
}

// check classifies a request error, ending the session on auth failures.
func (t *Tracker) check(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if t.Identity != nil {
		return t.Identity.Check(ctx, err)
	}
	return failure.Classify(err)
}

func (t *Tracker) actor(ctx context.Context) domain.ID {
	if t.Identity == nil {
		return ""
	}
	return t.Identity.Peek(ctx).UserID
}

func (t *Tracker) record(ctx context.Context, e events.Entry) {
	if t.Activity == nil {
		return
	}
	if e.ActorID == "" {
		e.ActorID = t.actor(ctx).String()
	}
	if err := t.Activity.Append(ctx, nil, e); err != nil {
		t.log().WithError(err).WithField("type", e.Type).Warn("record activity")
	}
}

// guard marks key as in flight. The returned release must be called once the
// submission settles; ok is false when key is already in flight.
func (t *Tracker) guard(key string) (release func(), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inflight == nil {
		t.inflight = map[string]bool{}
	}
	if t.inflight[key] {
		return nil, false
	}
	t.inflight[key] = true
	return func() {
		t.mu.Lock()
		delete(t.inflight, key)
		t.mu.Unlock()
	}, true
}

// InFlight reports whether a guarded submission for key is running.
func (t *Tracker) InFlight(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight[key]
}
