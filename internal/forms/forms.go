// Package forms holds the input forms of the client and validates them
// before any request is sent.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"fivew2h/internal/domain"
	"fivew2h/internal/failure"
	"fivew2h/internal/lifecycle"
	w2hsdk "fivew2h/sdk/go"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).Known()
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks a form and reports every offending field, keyed by its
// JSON name, as a *failure.ValidationFailure.
func Validate(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = describe(fe)
		}
	}
	return &failure.ValidationFailure{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank", "required_without":
		return "required"
	case "email":
		return "must be a valid email address"
	case "role":
		return "must be one of Admin, Lider, Gestor, Colaborador"
	case "datetime":
		return "must be a date in YYYY-MM-DD form"
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return fmt.Sprintf("must have at least %s characters", fe.Param())
	case "nefield":
		return "must differ from the current password"
	case "eqfield":
		return "does not match"
	}
	return "is invalid"
}

func trim(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

// LoginForm is the login page.
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (f *LoginForm) Check() error {
	trim(&f.Email)
	return Validate(f)
}

// ProjectForm creates or edits a project.
type ProjectForm struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	Origin       string `json:"origin" validate:"required"`
	OriginNumber int    `json:"originNumber" validate:"gte=0"`
	OriginDate   string `json:"originDate" validate:"required,datetime=2006-01-02"`
}

func (f *ProjectForm) Check() error {
	trim(&f.Title, &f.Description, &f.Origin, &f.OriginDate)
	return Validate(f)
}

// Input is the create body; userID owns the new project.
func (f ProjectForm) Input(userID domain.ID) w2hsdk.ProjectInput {
	return w2hsdk.ProjectInput{
		Title:        f.Title,
		Description:  f.Description,
		Origin:       f.Origin,
		OriginNumber: f.OriginNumber,
		OriginDate:   f.OriginDate,
		UserID:       userID,
		Status:       domain.ProjectCreated,
	}
}

// Changes is the update event payload.
func (f ProjectForm) Changes() lifecycle.ProjectChanges {
	return lifecycle.ProjectChanges{
		Title:        f.Title,
		Description:  f.Description,
		Origin:       f.Origin,
		OriginNumber: f.OriginNumber,
		OriginDate:   f.OriginDate,
	}
}

// ProjectFormFrom prefills the edit form.
func ProjectFormFrom(p domain.Project) ProjectForm {
	return ProjectForm{
		Title:        p.Title,
		Description:  p.Description,
		Origin:       p.Origin,
		OriginNumber: p.OriginNumber,
		OriginDate:   p.OriginDate,
	}
}

// ActionForm carries the 5W2H fields. All of them are required.
type ActionForm struct {
	Title   string  `json:"title" validate:"required"`
	What    string  `json:"what" validate:"required"`
	Why     string  `json:"why" validate:"required"`
	When    string  `json:"when" validate:"required"`
	Where   string  `json:"where" validate:"required"`
	Who     string  `json:"who" validate:"required"`
	How     string  `json:"how" validate:"required"`
	HowMuch float64 `json:"howMuch" validate:"gte=0"`
}

func (f *ActionForm) Check() error {
	trim(&f.Title, &f.What, &f.Why, &f.When, &f.Where, &f.Who, &f.How)
	return Validate(f)
}

func (f ActionForm) Input(projectID, userID domain.ID) w2hsdk.ActionInput {
	return w2hsdk.ActionInput{
		Title:     f.Title,
		What:      f.What,
		Why:       f.Why,
		When:      f.When,
		Where:     f.Where,
		Who:       f.Who,
		How:       f.How,
		HowMuch:   f.HowMuch,
		ProjectID: projectID,
		UserID:    userID,
	}
}

// ActionFormFrom prefills the edit form.
func ActionFormFrom(a domain.Action) ActionForm {
	return ActionForm{
		Title: a.Title, What: a.What, Why: a.Why, When: a.When,
		Where: a.Where, Who: a.Who, How: a.How, HowMuch: a.HowMuch,
	}
}

// Apply copies the form fields onto a.
func (f ActionForm) Apply(a domain.Action) domain.Action {
	a.Title, a.What, a.Why, a.When = f.Title, f.What, f.Why, f.When
	a.Where, a.Who, a.How, a.HowMuch = f.Where, f.Who, f.How, f.HowMuch
	return a
}

// UserForm registers a user when ID is empty and edits one otherwise. The
// password is required only for registration.
type UserForm struct {
	ID           domain.ID   `json:"id"`
	FullName     string      `json:"fullName" validate:"required"`
	Email        string      `json:"email" validate:"required,email"`
	Password     string      `json:"password" validate:"required_without=ID,omitempty,min=6"`
	Role         domain.Role `json:"role" validate:"required,role"`
	DepartmentID domain.ID   `json:"departmentId"`
}

func (f *UserForm) Check() error {
	trim(&f.FullName, &f.Email)
	if r := domain.ParseRole(string(f.Role)); r != "" {
		f.Role = r
	}
	return Validate(f)
}

func (f UserForm) Input() w2hsdk.UserInput {
	return w2hsdk.UserInput{
		ID:           f.ID,
		FullName:     f.FullName,
		Email:        f.Email,
		Password:     f.Password,
		Role:         f.Role,
		DepartmentID: f.DepartmentID,
	}
}

// DepartmentForm creates or edits a department.
type DepartmentForm struct {
	Name     string    `json:"name" validate:"required"`
	LiderID  domain.ID `json:"liderId"`
	GestorID domain.ID `json:"gestorId"`
}

func (f *DepartmentForm) Check() error {
	trim(&f.Name)
	return Validate(f)
}

func (f DepartmentForm) Input() w2hsdk.DepartmentInput {
	return w2hsdk.DepartmentInput{Name: f.Name, LiderID: f.LiderID, GestorID: f.GestorID}
}

// ChangePasswordForm changes the caller's password.
type ChangePasswordForm struct {
	UserID          domain.ID `json:"userId" validate:"required"`
	CurrentPassword string    `json:"currentPassword" validate:"required"`
	NewPassword     string    `json:"newPassword" validate:"required,min=6,nefield=CurrentPassword"`
	Confirmation    string    `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

func (f *ChangePasswordForm) Check() error { return Validate(f) }

func (f ChangePasswordForm) Request() w2hsdk.ChangePasswordRequest {
	return w2hsdk.ChangePasswordRequest{
		UserID:          f.UserID,
		CurrentPassword: f.CurrentPassword,
		NewPassword:     f.NewPassword,
	}
}

// ConclusionForm records a conclusion text.
type ConclusionForm struct {
	Text string `json:"conclusionText" validate:"notblank"`
}

func (f *ConclusionForm) Check() error {
	trim(&f.Text)
	return Validate(f)
}

// Pickers narrows a user list to the candidates of a department form.
func Pickers(users []domain.User) (lideres, gestores []domain.User) {
	for _, u := range users {
		if u.IsDeleted {
			continue
		}
		switch u.Role {
		case domain.RoleLider:
			lideres = append(lideres, u)
		case domain.RoleGestor:
			gestores = append(gestores, u)
		}
	}
	return lideres, gestores
}
