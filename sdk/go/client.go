package w2hsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client is a minimal 5W2H HTTP API client.
type Client struct {
	BaseURL    string
	Auth       TokenSource
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     logrus.FieldLogger
}

// TokenSource supplies the bearer token for authenticated calls. An empty
// token sends no Authorization header.
type TokenSource interface {
	BearerToken() string
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) BearerToken() string { return string(t) }

// New creates a client with sane defaults.
func New(baseURL string, auth TokenSource) *Client {
	return &Client{
		BaseURL: baseURL,
		Auth:    auth,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Page is one listing response. TotalPages is zero when the backend did not
// report it.
type Page[T any] struct {
	Items      []T
	TotalPages int
}

// ListParams are the query parameters accepted by the listing endpoints.
// Status -1 means every status.
type ListParams struct {
	Search     string
	PageNumber int
	PageSize   int
	Status     int
}

// AllStatuses is the status sentinel meaning no status filter.
const AllStatuses = -1

func (p ListParams) query() url.Values {
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.PageNumber > 0 {
		q.Set("pageNumber", fmt.Sprint(p.PageNumber))
	}
	if p.PageSize > 0 {
		q.Set("pageSize", fmt.Sprint(p.PageSize))
	}
	if p.PageNumber > 0 || p.PageSize > 0 || p.Status != 0 {
		q.Set("status", fmt.Sprint(p.Status))
	}
	return q
}

// envelope is the {isSuccess, data, totalPages} wrapper some endpoints use.
type envelope struct {
	IsSuccess  *bool           `json:"isSuccess"`
	Data       json.RawMessage `json:"data"`
	TotalPages int             `json:"totalPages"`
	Message    string          `json:"message"`
}

type responseMeta struct {
	TotalPages int
	Empty      bool
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) (responseMeta, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return responseMeta{}, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return responseMeta{}, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.Auth != nil {
		if token := c.Auth.BearerToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	started := time.Now()
	resp, err := c.HTTPClient.Do(req)
	log := c.logger().WithFields(logrus.Fields{
		"method":     method,
		"path":       req.URL.Path,
		"request_id": requestID,
		"elapsed":    time.Since(started).Round(time.Millisecond),
	})
	if err != nil {
		log.WithError(err).Debug("request failed")
		return responseMeta{}, err
	}
	defer resp.Body.Close()
	log = log.WithField("status", resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return responseMeta{}, err
	}
	if resp.StatusCode >= 300 {
		log.Debug("request rejected")
		return responseMeta{}, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	log.Debug("request done")
	return decodeBody(resp.StatusCode, data, out)
}

func decodeBody(status int, data []byte, out any) (responseMeta, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return responseMeta{Empty: true}, nil
	}
	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if _, wrapped := probe["data"]; wrapped {
				var env envelope
				if err := json.Unmarshal(trimmed, &env); err != nil {
					return responseMeta{}, fmt.Errorf("decode envelope: %w", err)
				}
				if env.IsSuccess != nil && !*env.IsSuccess {
					return responseMeta{}, &APIError{StatusCode: status, Body: string(trimmed)}
				}
				meta := responseMeta{TotalPages: env.TotalPages}
				if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
					meta.Empty = true
					return meta, nil
				}
				if err := json.Unmarshal(env.Data, out); err != nil {
					return meta, fmt.Errorf("decode response data: %w", err)
				}
				return meta, nil
			}
		}
	}
	if out == nil {
		return responseMeta{}, nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return responseMeta{}, fmt.Errorf("decode response: %w", err)
	}
	return responseMeta{}, nil
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func apiPath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+1)
	escaped = append(escaped, "api")
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

type transitionRequest struct {
	ID             ID     `json:"id"`
	Command        string `json:"command"`
	ConclusionText string `json:"conclusionText,omitempty"`
}
