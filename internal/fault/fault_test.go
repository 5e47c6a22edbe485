package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOf(t *testing.T) {
	err := New(NotFound, "agent missing")
	if CodeOf(err) != NotFound {
		t.Errorf("expected NotFound, got %s", CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != Internal {
		t.Error("untyped errors must map to Internal")
	}
	if CodeOf(nil) != Internal {
		t.Error("nil must map to Internal")
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := New(CapacityExceeded, "full")
	outer := fmt.Errorf("execute workflow: %w", inner)
	if !Is(outer, CapacityExceeded) {
		t.Errorf("code lost through fmt wrapping: %v", outer)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(AgentExecution, "all attempts failed", cause)
	if !errors.Is(err, cause) {
		t.Error("cause must be reachable via errors.Is")
	}
	if !Is(err, AgentExecution) {
		t.Error("expected AgentExecution code")
	}
}

func TestErrorString(t *testing.T) {
	err := New(Validation, "task type is required")
	want := "[VALIDATION] task type is required"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	wrapped := Wrap(Internal, "outer", errors.New("inner"))
	if wrapped.Error() != "[INTERNAL] outer: inner" {
		t.Errorf("unexpected wrapped message %q", wrapped.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{New(Validation, "x"), http.StatusBadRequest},
		{New(UnsupportedTask, "x"), http.StatusBadRequest},
		{New(NotFound, "x"), http.StatusNotFound},
		{New(DuplicateAgent, "x"), http.StatusConflict},
		{New(CapacityExceeded, "x"), http.StatusTooManyRequests},
		{New(AgentExecution, "x"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
