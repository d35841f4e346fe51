package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JackBungart/perceptive-crm/internal/config"
	"github.com/JackBungart/perceptive-crm/internal/model"
)

func gatewayFor(t *testing.T, handler http.HandlerFunc) (*HTTPGateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	relay := config.GatewayConfig{
		BaseURL:  srv.URL,
		SendPath: "/send",
		Breaker:  config.BreakerConfig{FailThreshold: 100, OpenForMs: 60000},
	}
	return NewHTTPGateway(config.GatewaysConfig{Email: relay, SMS: relay}), srv
}

func TestSendSuccess(t *testing.T) {
	var got sendPayload
	g, _ := gatewayFor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("path = %q, want /send", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	})

	err := g.Send(context.Background(), model.ChannelEmail, "a@b.example", "Hi", "Body")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.To != "a@b.example" || got.Subject != "Hi" || got.Body != "Body" {
		t.Errorf("payload = %+v", got)
	}
}

func TestSendSMSDropsSubject(t *testing.T) {
	var got sendPayload
	g, _ := gatewayFor(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	})

	if err := g.Send(context.Background(), model.ChannelSMS, "+15550100", "Subject", "Body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Subject != "" {
		t.Errorf("subject = %q, want empty for sms", got.Subject)
	}
}

func TestSendStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   Reason
	}{
		{http.StatusBadRequest, ReasonInvalidAddress},
		{http.StatusUnprocessableEntity, ReasonInvalidAddress},
		{http.StatusTooManyRequests, ReasonRateLimited},
		{http.StatusInternalServerError, ReasonTransportError},
		{http.StatusBadGateway, ReasonTransportError},
	}

	for _, tc := range cases {
		status := tc.status
		g, _ := gatewayFor(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})

		err := g.Send(context.Background(), model.ChannelEmail, "a@b.example", "s", "b")
		var serr *SendError
		if !errors.As(err, &serr) {
			t.Fatalf("status %d: err = %v, want SendError", status, err)
		}
		if serr.Reason != tc.want {
			t.Errorf("status %d: reason = %s, want %s", status, serr.Reason, tc.want)
		}
	}
}

func TestSendErrorRetryable(t *testing.T) {
	cases := []struct {
		reason Reason
		want   bool
	}{
		{ReasonTransportError, true},
		{ReasonRateLimited, true},
		{ReasonInvalidAddress, false},
	}
	for _, tc := range cases {
		e := &SendError{Reason: tc.reason, Channel: model.ChannelEmail}
		if got := e.Retryable(); got != tc.want {
			t.Errorf("%s retryable = %v, want %v", tc.reason, got, tc.want)
		}
	}
}

func TestSendUnknownChannel(t *testing.T) {
	g, _ := gatewayFor(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err := g.Send(context.Background(), model.Channel("fax"), "x", "s", "b")
	var serr *SendError
	if !errors.As(err, &serr) || serr.Reason != ReasonInvalidAddress {
		t.Fatalf("err = %v, want invalid_address", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	relay := config.GatewayConfig{
		BaseURL:  srv.URL,
		SendPath: "/send",
		Breaker:  config.BreakerConfig{FailThreshold: 2, OpenForMs: 60000},
	}
	g := NewHTTPGateway(config.GatewaysConfig{Email: relay, SMS: relay})

	for i := 0; i < 5; i++ {
		_ = g.Send(context.Background(), model.ChannelEmail, "a@b.example", "s", "b")
	}

	if calls != 2 {
		t.Fatalf("upstream calls = %d, want the breaker to stop after 2 failures", calls)
	}
}

func TestBreakerProbeAfterOpenWindow(t *testing.T) {
	b := NewMicroBreaker(1, 10*time.Millisecond)

	if !b.TryAcquire() {
		t.Fatal("closed breaker refused")
	}
	b.OnFailure()

	if b.TryAcquire() {
		t.Fatal("open breaker admitted a call")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.TryAcquire() {
		t.Fatal("breaker refused the probe after the open window")
	}
	b.OnSuccess()
	if !b.TryAcquire() {
		t.Fatal("breaker not closed after a successful probe")
	}
}
