// Package apitest is an in-memory stand-in for the 5W2H backend. It serves
// the same REST surface over a real listener so the client packages can be
// exercised end to end.
package apitest

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"fivew2h/internal/domain"
	"fivew2h/internal/identity"
)

// DefaultSecret signs tokens when Backend.Secret is empty.
const DefaultSecret = "apitest-secret"

// Fault replaces the next answer of one route. A zero Status drops the
// connection without answering.
type Fault struct {
	Status int
	Body   string
}

// Call is one request seen by the backend.
type Call struct {
	Method    string
	Route     string
	Path      string
	RequestID string
	Bearer    bool
}

type account struct {
	user     domain.User
	password string
}

// Backend holds the fake's data. Fields may be set before Serve.
type Backend struct {
	Secret []byte
	// Envelope wraps every answer in {isSuccess, data, totalPages}.
	Envelope bool
	// EmptyTransitions answers start/complete/update with an empty body.
	EmptyTransitions bool
	TokenTTL         time.Duration
	Now              func() time.Time

	mu          sync.Mutex
	seq         int
	users       map[domain.ID]*account
	projects    map[domain.ID]*domain.Project
	actions     map[domain.ID]*domain.Action
	departments map[domain.ID]*domain.Department
	faults      map[string][]Fault
	calls       []Call
}

func New() *Backend {
	return &Backend{
		TokenTTL:    time.Hour,
		users:       map[domain.ID]*account{},
		projects:    map[domain.ID]*domain.Project{},
		actions:     map[domain.ID]*domain.Action{},
		departments: map[domain.ID]*domain.Department{},
		faults:      map[string][]Fault{},
	}
}

// Serve starts b on a loopback listener and returns its base URL. The server
// stops when the test ends.
func Serve(t testing.TB, b *Backend) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: b.Handler()}
	go srv.Serve(ln)
	t.Cleanup(func() { _ = srv.Close() })
	return "http://" + ln.Addr().String()
}

func (b *Backend) now() time.Time {
	if b.Now == nil {
		return time.Now().UTC()
	}
	return b.Now()
}

func (b *Backend) secret() []byte {
	if len(b.Secret) == 0 {
		return []byte(DefaultSecret)
	}
	return b.Secret
}

func (b *Backend) nextID() domain.ID {
	b.seq++
	return domain.ID(strconv.Itoa(b.seq))
}

// FailNext queues f as the answer to the next request matching method and
// the chi route pattern, for example "/api/projects/{id}/actions".
func (b *Backend) FailNext(method, route string, f Fault) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + route
	b.faults[key] = append(b.faults[key], f)
}

// Calls returns the recorded requests, optionally limited to one route.
func (b *Backend) Calls(method, route string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if (method == "" || c.Method == method) && (route == "" || c.Route == route) {
			out = append(out, c)
		}
	}
	return out
}

// Mint signs a token for an existing user.
func (b *Backend) Mint(userID domain.ID) string {
	b.mu.Lock()
	acc, ok := b.users[userID]
	b.mu.Unlock()
	if !ok {
		return ""
	}
	return b.MintClaims(b.claimsFor(acc.user))
}

// MintClaims signs arbitrary claims with the backend's secret.
func (b *Backend) MintClaims(claims jwt.MapClaims) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret())
	if err != nil {
		panic(err)
	}
	return tok
}

func (b *Backend) claimsFor(u domain.User) jwt.MapClaims {
	return jwt.MapClaims{
		identity.RoleClaim:           string(u.Role),
		identity.NameIdentifierClaim: u.ID.String(),
		identity.NameClaim:           u.FullName,
		identity.EmailClaim:          u.Email,
		"exp":                        b.now().Add(b.TokenTTL).Unix(),
	}
}

// AddUser seeds a user. A zero ID is assigned.
func (b *Backend) AddUser(u domain.User, password string) domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = b.nextID()
	}
	b.users[u.ID] = &account{user: u, password: password}
	return u
}

// AddProject seeds a project. Zero ID and CreatedAt are filled in.
func (b *Backend) AddProject(p domain.Project) domain.Project {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = b.nextID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = domain.NewTimestamp(b.now())
	}
	b.projects[p.ID] = &p
	return p
}

// AddAction seeds an action. When ProjectID names a known project the link
// is recorded on both sides.
func (b *Backend) AddAction(a domain.Action) domain.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = b.nextID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = domain.NewTimestamp(b.now())
	}
	b.actions[a.ID] = &a
	if p, ok := b.projects[a.ProjectID]; ok {
		p.ActionIDs = append(p.ActionIDs, a.ID)
	}
	return a
}

// AddDepartment seeds a department.
func (b *Backend) AddDepartment(d domain.Department) domain.Department {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = b.nextID()
	}
	b.departments[d.ID] = &d
	return d
}

func (b *Backend) Project(id domain.ID) (domain.Project, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.projects[id]
	if !ok {
		return domain.Project{}, false
	}
	return *p, true
}

func (b *Backend) Action(id domain.ID) (domain.Action, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.actions[id]
	if !ok {
		return domain.Action{}, false
	}
	return *a, true
}

func (b *Backend) User(id domain.ID) (domain.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.users[id]
	if !ok {
		return domain.User{}, false
	}
	return acc.user, true
}

// Actions returns every stored action ordered by id.
func (b *Backend) Actions() []domain.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Action, 0, len(b.actions))
	for _, a := range b.actions {
		out = append(out, *a)
	}
	sortByID(out, func(a domain.Action) domain.ID { return a.ID })
	return out
}

func sortByID[T any](items []T, id func(T) domain.ID) {
	sort.SliceStable(items, func(i, j int) bool {
		a, _ := strconv.Atoi(id(items[i]).String())
		c, _ := strconv.Atoi(id(items[j]).String())
		return a < c
	})
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func (b *Backend) authenticate(token string) (domain.ID, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return b.secret(), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	sub, _ := claims[identity.NameIdentifierClaim].(string)
	if sub == "" {
		return "", errors.New("nameidentifier claim required")
	}
	return domain.ID(sub), nil
}

// requireAuth rejects requests without a valid bearer token.
func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			b.fail(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if _, err := b.authenticate(token); err != nil {
			b.fail(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// route records the call and applies a queued fault before running h.
func (b *Backend) route(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		_, bearer := bearerToken(r.Header.Get("Authorization"))
		b.mu.Lock()
		b.calls = append(b.calls, Call{
			Method: r.Method, Route: pattern, Path: r.URL.Path,
			RequestID: r.Header.Get("X-Request-Id"), Bearer: bearer,
		})
		key := r.Method + " " + pattern
		var (
			fault   Fault
			faulted bool
		)
		if q := b.faults[key]; len(q) > 0 {
			fault, faulted = q[0], true
			b.faults[key] = q[1:]
		}
		b.mu.Unlock()
		if !faulted {
			h(w, r)
			return
		}
		if fault.Status == 0 {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
			fault.Status = http.StatusBadGateway
		}
		w.WriteHeader(fault.Status)
		_, _ = w.Write([]byte(fault.Body))
	}
}

// Handler builds the chi router for the backend.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Put("/users/login", b.route(b.login))
		r.Group(func(r chi.Router) {
			r.Use(b.requireAuth)

			r.Get("/users", b.route(b.listUsers))
			r.Post("/users", b.route(b.createUser))
			r.Put("/users/change-password", b.route(b.changePassword))
			r.Get("/users/{id}", b.route(b.getUser))
			r.Put("/users/{id}", b.route(b.updateUser))
			r.Delete("/users/{id}", b.route(b.deleteUser))

			r.Get("/projects", b.route(b.listProjects))
			r.Post("/projects", b.route(b.createProject))
			r.Get("/projects/self/{userId}", b.route(b.listOwnProjects))
			r.Get("/projects/departments/{id}", b.route(b.listDepartmentProjects))
			r.Get("/projects/{id}", b.route(b.getProject))
			r.Put("/projects/{id}", b.route(b.updateProject))
			r.Put("/projects/{id}/start", b.route(b.startProject))
			r.Put("/projects/{id}/complete", b.route(b.completeProject))
			r.Delete("/projects/{id}/delete", b.route(b.deleteProject))
			r.Patch("/projects/{id}/conclusion", b.route(b.concludeProject))
			r.Post("/projects/{id}/actions", b.route(b.attachAction))

			r.Get("/actions", b.route(b.listActions))
			r.Post("/actions", b.route(b.createAction))
			r.Get("/actions/{id}", b.route(b.getAction))
			r.Put("/actions/{id}", b.route(b.updateAction))
			r.Put("/actions/{id}/start", b.route(b.startAction))
			r.Put("/actions/{id}/complete", b.route(b.completeAction))
			r.Delete("/actions/{id}/delete", b.route(b.deleteAction))
			r.Patch("/actions/{id}/conclusion", b.route(b.concludeAction))

			r.Get("/departments", b.route(b.listDepartments))
			r.Post("/departments", b.route(b.createDepartment))
			r.Get("/departments/{id}", b.route(b.getDepartment))
			r.Put("/departments/{id}", b.route(b.updateDepartment))
		})
	})
	return r
}

func (b *Backend) write(w http.ResponseWriter, status int, v any, totalPages int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if b.Envelope {
		env := map[string]any{"isSuccess": true, "data": v}
		if totalPages > 0 {
			env["totalPages"] = totalPages
		}
		_ = json.NewEncoder(w).Encode(env)
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) ok(w http.ResponseWriter, v any) { b.write(w, http.StatusOK, v, 0) }

// transitioned answers a state change, honoring EmptyTransitions.
func (b *Backend) transitioned(w http.ResponseWriter, v any) {
	if b.EmptyTransitions {
		w.WriteHeader(http.StatusOK)
		return
	}
	b.ok(w, v)
}

func (b *Backend) fail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if b.Envelope {
		_ = json.NewEncoder(w).Encode(map[string]any{"isSuccess": false, "data": nil, "message": msg})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request, name string) domain.ID {
	return domain.ID(chi.URLParam(r, name))
}
