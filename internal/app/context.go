package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"fivew2h/internal/config"
	"fivew2h/internal/db"
	"fivew2h/internal/events"
	"fivew2h/internal/identity"
	"fivew2h/internal/nav"
	"fivew2h/internal/session"
	"fivew2h/internal/store"
	"fivew2h/internal/tracker"
	w2hsdk "fivew2h/sdk/go"
)

// Options are the settings resolved from flags and environment. Empty
// fields fall back to the workspace config.
type Options struct {
	Workspace string
	BaseURL   string
	LogLevel  string
	LogOutput io.Writer
	// Now overrides the clock of every component.
	Now func() time.Time
}

// Context is everything a command needs, wired once per invocation.
type Context struct {
	Workspace string
	Config    *config.Config
	Log       *logrus.Logger
	Store     store.Store
	Activity  events.Writer
	Session   *session.Session
	Client    *w2hsdk.Client
	Tracker   *tracker.Tracker
	Router    *nav.Router
}

// Open loads the config, opens the local store and builds the client stack.
func Open(ctx context.Context, opts Options) (*Context, error) {
	if opts.Workspace == "" {
		opts.Workspace = "."
	}
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if opts.BaseURL != "" {
		cfg.API.BaseURL = opts.BaseURL
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := NewLogger(opts.LogOutput, cfg.Log.Level, opts.Workspace)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	st.Now = now

	sess := session.New(st, nil)
	sess.Now = now
	sess.Log = log.WithField("component", "session")

	client := w2hsdk.New(cfg.API.BaseURL, sess)
	client.Timeout = cfg.API.Timeout
	client.Logger = log.WithField("component", "sdk")
	sess.Users = client

	activity := events.Writer{DB: st.DB, Now: now}
	tr := tracker.New(client, sess, activity)
	tr.Log = log.WithField("component", "tracker")
	tr.Now = now
	tr.FetchSize = cfg.List.FetchSize

	router := nav.NewRouter()
	router.Now = now

	return &Context{
		Workspace: opts.Workspace,
		Config:    cfg,
		Log:       log,
		Store:     st,
		Activity:  activity,
		Session:   sess,
		Client:    client,
		Tracker:   tr,
		Router:    router,
	}, nil
}

func (c *Context) Close() error { return c.Store.Close() }

// Require runs the route guard for path and returns the caller's claims when
// the route may be shown.
func (c *Context) Require(ctx context.Context, path string) (identity.Claims, error) {
	claims, err := c.Session.Claims(ctx)
	if d := c.Router.Guard(path, claims); !d.Allowed {
		if err != nil {
			return claims, fmt.Errorf("%w; go to %s", err, d.Redirect)
		}
		return claims, fmt.Errorf("%s is not available; go to %s", path, d.Redirect)
	}
	return claims, nil
}

// NewLogger builds the stderr logger. Every entry carries the workspace.
func NewLogger(out io.Writer, level, workspace string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.Out = out
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.SetLevel(lvl)
	l.AddHook(&defaultFieldsHook{workspace: workspace})
	return l, nil
}

type defaultFieldsHook struct {
	workspace string
}

func (h *defaultFieldsHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *defaultFieldsHook) Fire(e *logrus.Entry) error {
	e.Data["workspace"] = h.workspace
	return nil
}
