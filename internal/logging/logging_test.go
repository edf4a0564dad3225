package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewWritesNamedEntries(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Writer: &buf}).WithName("api")

	log.Info("request finished", "status", 200)
	log.Error(errors.New("boom"), "request failed", "path", "/webhook/executions")

	out := buf.String()
	for _, want := range []string{"api", `"msg"="request finished"`, `"status"=200`, `"error"="boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVerbosityGatesVerboseEntries(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Writer: &buf})

	log.V(1).Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("V(1) should be dropped at verbosity 0, got %q", buf.String())
	}

	log = New(Options{Writer: &buf, Verbosity: 1})
	log.V(1).Info("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("V(1) should be written at verbosity 1, got %q", buf.String())
	}
}
