package analyzer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestOrchestrateSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orchestrate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %s", r.Header.Get("Content-Type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"combinedDecision":{"nextAction":"Bring on the spinner"},"meta":{"executedAgents":["tactical"]}}`))
	})

	resp, err := c.Orchestrate(context.Background(), &AnalysisRequest{RequestID: "r1"})
	if err != nil {
		t.Fatalf("Orchestrate failed: %v", err)
	}
	if resp.Partial {
		t.Error("200 response must not be partial")
	}
	if !resp.HasUsableOutput() {
		t.Error("expected usable output")
	}
	if resp.CombinedDecision.NextAction != "Bring on the spinner" {
		t.Errorf("nextAction = %q", resp.CombinedDecision.NextAction)
	}
}

func TestMultiStatusSetsPartial(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMultiStatus)
		w.Write([]byte(`{"tactical":{"immediateAction":"Hold the length"},"errors":["fatigue agent unavailable"],"meta":{"executedAgents":["tactical"]}}`))
	})

	resp, err := c.Orchestrate(context.Background(), &AnalysisRequest{})
	if err != nil {
		t.Fatalf("Orchestrate failed: %v", err)
	}
	if !resp.Partial {
		t.Error("207 must set Partial")
	}
}

func TestHTMLBodyIsMalformed(t *testing.T) {
	// An SPA fallback page intercepting the API route.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!DOCTYPE html><html><body>app</body></html>"))
	})

	_, err := c.Orchestrate(context.Background(), &AnalysisRequest{})
	if KindOf(err) != KindMalformed {
		t.Errorf("kind = %s, want malformed-response", KindOf(err))
	}
	if !IsRetryable(err) {
		t.Error("malformed responses must trigger the fallback cascade")
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		want      Kind
		retryable bool
	}{
		{http.StatusNotFound, KindClient, false},
		{http.StatusUnprocessableEntity, KindClient, false},
		{http.StatusForbidden, KindOriginBlocked, true},
		{http.StatusInternalServerError, KindServer, true},
		{http.StatusBadGateway, KindServer, true},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := c.Tactical(context.Background(), &TacticalRequest{})
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		var ae *Error
		if !errors.As(err, &ae) {
			t.Fatalf("status %d: not an analyzer error: %v", tc.status, err)
		}
		if ae.Kind != tc.want {
			t.Errorf("status %d: kind = %s, want %s", tc.status, ae.Kind, tc.want)
		}
		if ae.Retryable() != tc.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tc.status, ae.Retryable(), tc.retryable)
		}
		if ae.Status != tc.status {
			t.Errorf("status %d: recorded status %d", tc.status, ae.Status)
		}
	}
}

func TestCancelledContextIsTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Health(ctx)
	if KindOf(err) != KindTimeout {
		t.Errorf("kind = %s, want timeout", KindOf(err))
	}
}

func TestUnreachableHostIsNetwork(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if k := KindOf(err); k != KindNetwork && k != KindTimeout {
		t.Errorf("kind = %s, want network", k)
	}
}

func TestTacticalResponseUsable(t *testing.T) {
	var nilResp *TacticalResponse
	if nilResp.Usable() {
		t.Error("nil response usable")
	}
	if (&TacticalResponse{}).Usable() {
		t.Error("empty response usable")
	}
	if !(&TacticalResponse{ImmediateAction: "Hold the length"}).Usable() {
		t.Error("actionable response not usable")
	}
}
