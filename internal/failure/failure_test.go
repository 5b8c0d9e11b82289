package failure

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	w2hsdk "fivew2h/sdk/go"
)

func TestClassifyAPIErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
		msg  string
	}{
		{"unauthorized", &w2hsdk.APIError{StatusCode: http.StatusUnauthorized}, KindAuth, GenericAuthMessage},
		{"unauthorized with body", &w2hsdk.APIError{StatusCode: 401, Body: `{"message":"token revoked"}`}, KindAuth, "token revoked"},
		{"bad request with message", &w2hsdk.APIError{StatusCode: 400, Body: `{"message":"project is not in progress"}`}, KindServer, "project is not in progress"},
		{"nested error message", &w2hsdk.APIError{StatusCode: 409, Body: `{"error":{"message":"duplicate"}}`}, KindServer, "duplicate"},
		{"plain text body", &w2hsdk.APIError{StatusCode: 500, Body: "boom"}, KindServer, "boom"},
		{"html error page", &w2hsdk.APIError{StatusCode: 502, Body: "<html><body>bad gateway</body></html>"}, KindNetwork, GenericNetworkMessage},
		{"empty body", &w2hsdk.APIError{StatusCode: 503}, KindNetwork, GenericNetworkMessage},
		{"transport error", errors.New("dial tcp: connection refused"), KindNetwork, GenericNetworkMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if k := KindOf(got); k != tc.kind {
				t.Fatalf("expected kind %q, got %q (%v)", tc.kind, k, got)
			}
			if m := Message(got); m != tc.msg {
				t.Fatalf("expected message %q, got %q", tc.msg, m)
			}
		})
	}
}

func TestClassifyKeepsTaxonomyErrors(t *testing.T) {
	pf := Precondition("start", "busy")
	if got := Classify(pf); got != pf {
		t.Fatalf("expected the same error back, got %v", got)
	}
	if Classify(nil) != nil {
		t.Fatalf("expected nil for nil")
	}
}

func TestPartialFailureUnwrapsCause(t *testing.T) {
	cause := Classify(&w2hsdk.APIError{StatusCode: 500, Body: `{"message":"link failed"}`})
	err := &PartialFailure{ActionID: "7", ProjectID: "3", Cause: cause}
	if KindOf(err) != KindPartial {
		t.Fatalf("partial must win over its cause, got %q", KindOf(err))
	}
	var sf *ServerFailure
	if !errors.As(err, &sf) {
		t.Fatalf("expected cause to be reachable")
	}
	msg := Message(err)
	if !strings.Contains(msg, "action 7") || !strings.Contains(msg, "project 3") || !strings.Contains(msg, "link failed") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestValidationFailureMessageIsSorted(t *testing.T) {
	err := &ValidationFailure{Fields: map[string]string{"title": "required", "email": "invalid"}}
	if got := err.Error(); got != "invalid input: email: invalid; title: required" {
		t.Fatalf("unexpected message %q", got)
	}
	if msg, ok := err.Field("title"); !ok || msg != "required" {
		t.Fatalf("expected title annotation, got %q %v", msg, ok)
	}
	if !IsAuth(&AuthFailure{}) || IsAuth(err) {
		t.Fatalf("IsAuth misclassified")
	}
}

func TestMessageForUnknownErrors(t *testing.T) {
	if got := Message(errors.New("internal detail")); got != GenericServerMessage {
		t.Fatalf("unclassified errors must not leak, got %q", got)
	}
	if got := Message(&ServerFailure{Status: 500}); got != GenericServerMessage {
		t.Fatalf("expected generic server message, got %q", got)
	}
}
