// Package testutil holds fixtures shared by ReelPipe tests: a small reel and
// questionnaire covering every step kind, a capturing submitter and JSON
// request helpers.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/ReelPipe/internal/flow"
)

// DemoScenes is a two-beat reel: [0s,2s) then an open call to action.
func DemoScenes() []flow.Definition {
	return []flow.Definition{
		{ID: 0, Kind: flow.KindScene, Tag: "start", Prompt: "Empieza", Window: &flow.Window{Start: 0, End: 2 * time.Second}},
		{ID: 1, Kind: flow.KindScene, Tag: "cta", Prompt: "Listo", ButtonText: "Comenzar", Window: &flow.Window{Start: 2 * time.Second, End: flow.Forever}},
	}
}

// DemoSteps is welcome, single-choice, reflection, free-text, contact.
func DemoSteps() []flow.Definition {
	return []flow.Definition{
		{ID: 0, Kind: flow.KindWelcome, Prompt: "Hola"},
		{ID: 1, Kind: flow.KindSingleChoice, Prompt: "Elige", Options: []string{"Uno", "Dos", "Tres"}},
		{ID: 2, Kind: flow.KindReflection, Prompt: "Respira"},
		{ID: 3, Kind: flow.KindFreeText, Prompt: "Cuéntame", InputHint: "escribe"},
		{ID: 4, Kind: flow.KindContact, Prompt: "Contacto"},
	}
}

// DemoConfig builds the demo tables with synchronous settles, so a nil
// Timer gives fully deterministic flows.
func DemoConfig(t *testing.T, opts ...flow.ConfigOption) *flow.Config {
	t.Helper()
	base := []flow.ConfigOption{flow.WithName("demo"), flow.WithSettleDelay(0)}
	cfg, err := flow.NewConfig(DemoScenes(), DemoSteps(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("demo config: %v", err)
	}
	return cfg
}

// Submission is one call seen by a CaptureSubmitter.
type Submission struct {
	SessionID string
	Answers   map[int]flow.Answer
}

// CaptureSubmitter records every Submit call.
type CaptureSubmitter struct {
	mu    sync.Mutex
	calls []Submission
	Err   error
}

// Submit implements flow.Submitter.
func (c *CaptureSubmitter) Submit(_ context.Context, sessionID string, answers map[int]flow.Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Submission{SessionID: sessionID, Answers: answers})
	return c.Err
}

// Calls returns a copy of the recorded submissions.
func (c *CaptureSubmitter) Calls() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Submission(nil), c.calls...)
}

// CreateHTTPRequest builds a request with an optional JSON body. A string
// body is sent verbatim.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		buf.Write(MustMarshalJSON(t, b))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertHTTPStatus fails the test when the status code differs.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
