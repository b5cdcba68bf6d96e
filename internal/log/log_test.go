package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentTour, Output: &buf})
	l.Info("Tour started", FieldTourID, "intro")

	out := buf.String()
	if !strings.Contains(out, "component=tour") || !strings.Contains(out, "tour_id=intro") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWithComponentReplaces(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentApp, Output: &buf}).WithComponent(ComponentHTTP)
	l.Info("hello")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=http") {
		t.Fatalf("component not replaced: %q", out)
	}
	if l.Component() != ComponentHTTP {
		t.Errorf("Component() = %q", l.Component())
	}
}

func TestJSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})
	l.Info("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, `"msg":"kept"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})
	l.LogError(context.Background(), "Save failed", errors.New("disk full"), OpEnd,
		NewFields().WithStep("intro", "s1", 0).WithUser("alice"))

	out := buf.String()
	for _, want := range []string{"level=ERROR", `error="disk full"`, "operation=end", "step_id=s1", "user=alice"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf})

	var got *Logger
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request logger not injected: %q", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("FromContext default = %+v", l)
	}
}
