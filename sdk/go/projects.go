package w2hsdk

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp LoginResponse
	_, err := c.do(ctx, http.MethodPut, apiPath("users", "login"), LoginRequest{Email: email, Password: password}, &resp)
	return resp.Token, err
}

// ListProjects returns every project visible to the caller.
func (c *Client) ListProjects(ctx context.Context, params ListParams) (Page[Project], error) {
	return listPage[Project](ctx, c, withQuery(apiPath("projects"), params.query()))
}

// ListOwnProjects returns the projects owned by userID.
func (c *Client) ListOwnProjects(ctx context.Context, userID ID) (Page[Project], error) {
	return listPage[Project](ctx, c, apiPath("projects", "self", userID.String()))
}

// ListDepartmentProjects returns the projects of one department.
func (c *Client) ListDepartmentProjects(ctx context.Context, departmentID ID, params ListParams) (Page[Project], error) {
	return listPage[Project](ctx, c, withQuery(apiPath("projects", "departments", departmentID.String()), params.query()))
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id ID) (Project, error) {
	var resp Project
	_, err := c.do(ctx, http.MethodGet, apiPath("projects", id.String()), nil, &resp)
	return resp, err
}

// CreateProject creates a project in the Created state.
func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (Project, error) {
	var resp Project
	_, err := c.do(ctx, http.MethodPost, apiPath("projects"), in, &resp)
	return resp, err
}

// UpdateProject replaces the project's metadata.
func (c *Client) UpdateProject(ctx context.Context, id ID, in ProjectInput) (*Project, error) {
	in.ID = id
	return c.projectMutation(ctx, http.MethodPut, apiPath("projects", id.String()), in)
}

// StartProject moves a project to InProgress. The returned project is nil
// when the backend answers with an empty body.
func (c *Client) StartProject(ctx context.Context, id ID) (*Project, error) {
	return c.projectMutation(ctx, http.MethodPut, apiPath("projects", id.String(), "start"),
		transitionRequest{ID: id, Command: "StartProject"})
}

// CompleteProject moves a project to Completed with its conclusion text.
func (c *Client) CompleteProject(ctx context.Context, id ID, conclusion string) (*Project, error) {
	return c.projectMutation(ctx, http.MethodPut, apiPath("projects", id.String(), "complete"),
		transitionRequest{ID: id, Command: "CompleteProject", ConclusionText: conclusion})
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id ID) error {
	_, err := c.do(ctx, http.MethodDelete, apiPath("projects", id.String(), "delete"),
		transitionRequest{ID: id, Command: "DeleteProject"}, nil)
	return err
}

// SetProjectConclusion stores the conclusion text of a completed project.
func (c *Client) SetProjectConclusion(ctx context.Context, id ID, text string) error {
	body := struct {
		ProjectID      ID     `json:"projectId"`
		ConclusionText string `json:"conclusionText"`
	}{ProjectID: id, ConclusionText: text}
	_, err := c.do(ctx, http.MethodPatch, apiPath("projects", id.String(), "conclusion"), body, nil)
	return err
}

// AttachAction links an existing action to a project.
func (c *Client) AttachAction(ctx context.Context, projectID, actionID ID) error {
	_, err := c.do(ctx, http.MethodPost, apiPath("projects", projectID.String(), "actions"),
		Association{ProjectID: projectID, ActionID: actionID}, nil)
	return err
}

func (c *Client) projectMutation(ctx context.Context, method, endpoint string, body any) (*Project, error) {
	var resp Project
	meta, err := c.do(ctx, method, endpoint, body, &resp)
	if err != nil || meta.Empty || resp.ID == "" {
		return nil, err
	}
	return &resp, nil
}

func listPage[T any](ctx context.Context, c *Client, endpoint string) (Page[T], error) {
	var items []T
	meta, err := c.do(ctx, http.MethodGet, endpoint, nil, &items)
	if err != nil {
		return Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, TotalPages: meta.TotalPages}, nil
}
