package w2hsdk

import (
	"context"
	"net/http"
)

// ListActions returns every action. The backend has no per-project listing,
// callers filter by ProjectID.
func (c *Client) ListActions(ctx context.Context) ([]Action, error) {
	page, err := listPage[Action](ctx, c, apiPath("actions"))
	return page.Items, err
}

// GetAction fetches an action by id.
func (c *Client) GetAction(ctx context.Context, id ID) (Action, error) {
	var resp Action
	_, err := c.do(ctx, http.MethodGet, apiPath("actions", id.String()), nil, &resp)
	return resp, err
}

// CreateAction creates an action. It is not linked to any project until
// AttachAction succeeds.
func (c *Client) CreateAction(ctx context.Context, in ActionInput) (Action, error) {
	var resp Action
	_, err := c.do(ctx, http.MethodPost, apiPath("actions"), in, &resp)
	return resp, err
}

// UpdateAction replaces an action's 5W2H fields.
func (c *Client) UpdateAction(ctx context.Context, id ID, in ActionInput) (*Action, error) {
	return c.actionMutation(ctx, http.MethodPut, apiPath("actions", id.String()), in)
}

// StartAction moves an action to InProgress.
func (c *Client) StartAction(ctx context.Context, id ID) (*Action, error) {
	return c.actionMutation(ctx, http.MethodPut, apiPath("actions", id.String(), "start"),
		transitionRequest{ID: id, Command: "StartAction"})
}

// CompleteAction moves an action to Completed, carrying the conclusion draft.
func (c *Client) CompleteAction(ctx context.Context, id ID, conclusion string) (*Action, error) {
	return c.actionMutation(ctx, http.MethodPut, apiPath("actions", id.String(), "complete"),
		transitionRequest{ID: id, Command: "CompleteAction", ConclusionText: conclusion})
}

// DeleteAction removes an action.
func (c *Client) DeleteAction(ctx context.Context, id ID) error {
	_, err := c.do(ctx, http.MethodDelete, apiPath("actions", id.String(), "delete"),
		transitionRequest{ID: id, Command: "DeleteAction"}, nil)
	return err
}

// SetActionConclusion stores the conclusion text of a completed action.
func (c *Client) SetActionConclusion(ctx context.Context, id ID, text string) error {
	body := struct {
		ActionID       ID     `json:"actionId"`
		ConclusionText string `json:"conclusionText"`
	}{ActionID: id, ConclusionText: text}
	_, err := c.do(ctx, http.MethodPatch, apiPath("actions", id.String(), "conclusion"), body, nil)
	return err
}

func (c *Client) actionMutation(ctx context.Context, method, endpoint string, body any) (*Action, error) {
	var resp Action
	meta, err := c.do(ctx, method, endpoint, body, &resp)
	if err != nil || meta.Empty || resp.ID == "" {
		return nil, err
	}
	return &resp, nil
}
