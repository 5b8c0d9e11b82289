package domain

import (
	"fmt"
	"strings"
)

// ProjectStatus mirrors the backend's integer project states.
type ProjectStatus int

const (
	ProjectCreated ProjectStatus = iota
	ProjectInProgress
	ProjectSuspended
	ProjectCancelled
	ProjectCompleted
)

var projectStatusNames = map[ProjectStatus]string{
	ProjectCreated:    "created",
	ProjectInProgress: "in_progress",
	ProjectSuspended:  "suspended",
	ProjectCancelled:  "cancelled",
	ProjectCompleted:  "completed",
}

var projectStatusLabels = map[ProjectStatus]string{
	ProjectCreated:    "Criado",
	ProjectInProgress: "Em Andamento",
	ProjectSuspended:  "Suspenso",
	ProjectCancelled:  "Cancelado",
	ProjectCompleted:  "Concluído",
}

func (s ProjectStatus) String() string {
	if n, ok := projectStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("project_status(%d)", int(s))
}

// Label is the text shown next to a project.
func (s ProjectStatus) Label() string {
	if l, ok := projectStatusLabels[s]; ok {
		return l
	}
	return UnknownStatusLabel
}

func (s ProjectStatus) Valid() bool {
	_, ok := projectStatusNames[s]
	return ok
}

// ActionStatus mirrors the backend's integer action states. The integers
// overlap with ProjectStatus but the meanings do not.
type ActionStatus int

const (
	ActionNotStarted ActionStatus = iota
	ActionInProgress
	ActionPending
	ActionOverdue
	ActionCompleted
)

var actionStatusNames = map[ActionStatus]string{
	ActionNotStarted: "not_started",
	ActionInProgress: "in_progress",
	ActionPending:    "pending",
	ActionOverdue:    "overdue",
	ActionCompleted:  "completed",
}

var actionStatusLabels = map[ActionStatus]string{
	ActionNotStarted: "Não Iniciado",
	ActionInProgress: "Em Andamento",
	ActionPending:    "Pendente",
	ActionOverdue:    "Atrasado",
	ActionCompleted:  "Concluído",
}

func (s ActionStatus) String() string {
	if n, ok := actionStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("action_status(%d)", int(s))
}

func (s ActionStatus) Label() string {
	if l, ok := actionStatusLabels[s]; ok {
		return l
	}
	return UnknownStatusLabel
}

func (s ActionStatus) Valid() bool {
	_, ok := actionStatusNames[s]
	return ok
}

const UnknownStatusLabel = "Status Desconhecido"

// ParseProjectStatus accepts either the integer code or the snake_case name.
func ParseProjectStatus(v string) (ProjectStatus, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	for s, n := range projectStatusNames {
		if n == v || fmt.Sprint(int(s)) == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("invalid project status %q", v)
}

// Role is the string-valued role claim.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleLider       Role = "Lider"
	RoleGestor      Role = "Gestor"
	RoleColaborador Role = "Colaborador"
)

// Roles lists the known roles in display order.
var Roles = []Role{RoleColaborador, RoleAdmin, RoleLider, RoleGestor}

func (r Role) Known() bool {
	for _, k := range Roles {
		if r == k {
			return true
		}
	}
	return false
}

// ParseRole matches case-insensitively and returns "" for unknown roles.
func ParseRole(v string) Role {
	v = strings.TrimSpace(v)
	for _, k := range Roles {
		if strings.EqualFold(string(k), v) {
			return k
		}
	}
	return ""
}
