package w2hsdk

import (
	"context"
	"net/http"
)

// ListUsers returns all users, soft-deleted ones included.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	page, err := listPage[User](ctx, c, apiPath("users"))
	return page.Items, err
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, id ID) (User, error) {
	var resp User
	_, err := c.do(ctx, http.MethodGet, apiPath("users", id.String()), nil, &resp)
	return resp, err
}

// CreateUser registers a user.
func (c *Client) CreateUser(ctx context.Context, in UserInput) (User, error) {
	var resp User
	_, err := c.do(ctx, http.MethodPost, apiPath("users"), in, &resp)
	return resp, err
}

// UpdateUser replaces a user's profile.
func (c *Client) UpdateUser(ctx context.Context, id ID, in UserInput) error {
	in.ID = id
	_, err := c.do(ctx, http.MethodPut, apiPath("users", id.String()), in, nil)
	return err
}

// DeleteUser soft-deletes a user.
func (c *Client) DeleteUser(ctx context.Context, id ID) error {
	body := struct {
		ID ID `json:"id"`
	}{ID: id}
	_, err := c.do(ctx, http.MethodDelete, apiPath("users", id.String()), body, nil)
	return err
}

// ChangePassword updates the caller's password.
func (c *Client) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	_, err := c.do(ctx, http.MethodPut, apiPath("users", "change-password"), req, nil)
	return err
}

// ListDepartments returns every department.
func (c *Client) ListDepartments(ctx context.Context) ([]Department, error) {
	page, err := listPage[Department](ctx, c, apiPath("departments"))
	return page.Items, err
}

// GetDepartment fetches a department by id.
func (c *Client) GetDepartment(ctx context.Context, id ID) (Department, error) {
	var resp Department
	_, err := c.do(ctx, http.MethodGet, apiPath("departments", id.String()), nil, &resp)
	return resp, err
}

// CreateDepartment creates a department.
func (c *Client) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	var resp Department
	_, err := c.do(ctx, http.MethodPost, apiPath("departments"), in, &resp)
	return resp, err
}

// UpdateDepartment replaces a department's name and managers.
func (c *Client) UpdateDepartment(ctx context.Context, id ID, in DepartmentInput) error {
	in.ID = id
	_, err := c.do(ctx, http.MethodPut, apiPath("departments", id.String()), in, nil)
	return err
}
