package nav

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fivew2h/internal/domain"
	"fivew2h/internal/identity"
)

const (
	RouteRoot               = "/"
	RouteLogin              = "/login"
	RouteHome               = "/home"
	RouteProjects           = "/projects"
	RouteAddProject         = "/adicionar-projeto"
	RouteListProjects       = "/listar-projetos"
	RouteListOwnProjects    = "/listar-meus-projetos"
	RouteDepartmentProjects = "/listar-projetos-setor/{id}"
	RouteProject            = "/projeto/{id}"
	RouteUpdateProject      = "/projeto/{id}/update"
	RouteAddAction          = "/projeto/{projectId}/inserir-acao"
	RouteRegister           = "/registro"
	RouteSettings           = "/configuracoes"
	RouteDepartments        = "/departments"
	RouteCreateDepartment   = "/criar-departamento"
	RouteUpdateDepartment   = "/atualizar-departamento/{id}"
	RouteUpdateUser         = "/update-user/{id}"
	RouteChangePassword     = "/alterar-senha"
)

// DepartmentProjectsRoute expands RouteDepartmentProjects.
func DepartmentProjectsRoute(id domain.ID) string { return expand(RouteDepartmentProjects, "id", id) }

// ProjectRoute expands RouteProject.
func ProjectRoute(id domain.ID) string { return expand(RouteProject, "id", id) }

// UpdateProjectRoute expands RouteUpdateProject.
func UpdateProjectRoute(id domain.ID) string { return expand(RouteUpdateProject, "id", id) }

// AddActionRoute expands RouteAddAction.
func AddActionRoute(projectID domain.ID) string { return expand(RouteAddAction, "projectId", projectID) }

func expand(pattern, param string, id domain.ID) string {
	return strings.Replace(pattern, "{"+param+"}", url.PathEscape(id.String()), 1)
}

// Decision is the outcome of guarding a path.
type Decision struct {
	Allowed  bool
	Pattern  string
	Params   map[string]string
	Redirect string
}

// Router matches client paths against the route table.
type Router struct {
	mux    *chi.Mux
	public map[string]bool
	Now    func() time.Time
}

// NewRouter registers every client route.
func NewRouter() *Router {
	r := &Router{mux: chi.NewRouter(), public: map[string]bool{RouteLogin: true}, Now: time.Now}
	noop := func(http.ResponseWriter, *http.Request) {}
	for _, p := range []string{
		RouteRoot, RouteLogin, RouteHome, RouteProjects, RouteAddProject,
		RouteListProjects, RouteListOwnProjects, RouteDepartmentProjects,
		RouteProject, RouteUpdateProject, RouteAddAction, RouteRegister,
		RouteSettings, RouteDepartments, RouteCreateDepartment,
		RouteUpdateDepartment, RouteUpdateUser, RouteChangePassword,
	} {
		r.mux.Get(p, noop)
	}
	return r
}

// Guard decides whether path may be shown to the holder of claims. Every
// route except /login needs an authenticated session. The root path and
// unknown paths redirect.
func (r *Router) Guard(path string, claims identity.Claims) Decision {
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}
	if path == "" {
		path = RouteRoot
	}
	authed := claims.Authenticated(r.Now())
	rctx := chi.NewRouteContext()
	pattern := r.mux.Find(rctx, http.MethodGet, path)
	switch {
	case pattern == "" || pattern == RouteRoot:
		if authed {
			return Decision{Redirect: RouteHome}
		}
		return Decision{Redirect: RouteLogin}
	case r.public[pattern]:
		return Decision{Allowed: true, Pattern: pattern}
	case !authed:
		return Decision{Redirect: RouteLogin, Pattern: pattern}
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		params[k] = rctx.URLParams.Values[i]
	}
	return Decision{Allowed: true, Pattern: pattern, Params: params}
}
