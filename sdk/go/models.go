package w2hsdk

import "fivew2h/internal/domain"

// Model types are shared with the view-model packages.
type (
	ID            = domain.ID
	Project       = domain.Project
	Action        = domain.Action
	User          = domain.User
	Department    = domain.Department
	Role          = domain.Role
	ProjectStatus = domain.ProjectStatus
	ActionStatus  = domain.ActionStatus
)

// LoginRequest is the body of PUT /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// ProjectInput is the writable part of a project.
type ProjectInput struct {
	ID           ID            `json:"id,omitempty"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Origin       string        `json:"origin"`
	OriginNumber int           `json:"originNumber"`
	OriginDate   string        `json:"originDate"`
	UserID       ID            `json:"userId,omitempty"`
	Status       ProjectStatus `json:"status,omitempty"`
}

// ActionInput is the 5W2H body of POST /api/actions.
type ActionInput struct {
	Title     string  `json:"title"`
	What      string  `json:"what"`
	Why       string  `json:"why"`
	When      string  `json:"when"`
	Where     string  `json:"where"`
	Who       string  `json:"who"`
	How       string  `json:"how"`
	HowMuch   float64 `json:"howMuch"`
	ProjectID ID      `json:"projectId,omitempty"`
	UserID    ID      `json:"userId,omitempty"`
}

// UserInput is used for registration and profile updates.
type UserInput struct {
	ID           ID     `json:"id,omitempty"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Password     string `json:"password,omitempty"`
	Role         Role   `json:"role"`
	DepartmentID ID     `json:"departmentId,omitempty"`
}

// ChangePasswordRequest is the body of PUT /api/users/change-password.
type ChangePasswordRequest struct {
	UserID          ID     `json:"userId"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// DepartmentInput creates or updates a department.
type DepartmentInput struct {
	ID       ID     `json:"id,omitempty"`
	Name     string `json:"name"`
	LiderID  ID     `json:"liderId,omitempty"`
	GestorID ID     `json:"gestorId,omitempty"`
}

// Association links an existing action to a project.
type Association struct {
	ProjectID ID `json:"projectId"`
	ActionID  ID `json:"actionId"`
}
