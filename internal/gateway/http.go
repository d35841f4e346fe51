package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JackBungart/perceptive-crm/internal/config"
	"github.com/JackBungart/perceptive-crm/internal/model"
)

// relay is one HTTP transport endpoint (an email relay or an SMS provider)
// guarded by its own circuit breaker.
type relay struct {
	baseURL  string
	sendPath string
	client   *http.Client
	br       *MicroBreaker
}

func newRelay(cfg config.GatewayConfig) *relay {
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	failThreshold := cfg.Breaker.FailThreshold
	if failThreshold <= 0 {
		failThreshold = 3
	}
	openForMs := cfg.Breaker.OpenForMs
	if openForMs <= 0 {
		openForMs = 15000
	}

	return &relay{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		sendPath: cfg.SendPath,
		client:   &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:       NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

// HTTPGateway sends email and SMS through per-channel HTTP relays.
type HTTPGateway struct {
	email *relay
	sms   *relay
}

func NewHTTPGateway(cfg config.GatewaysConfig) *HTTPGateway {
	return &HTTPGateway{
		email: newRelay(cfg.Email),
		sms:   newRelay(cfg.SMS),
	}
}

var _ Gateway = (*HTTPGateway)(nil)

type sendPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

func (g *HTTPGateway) Send(ctx context.Context, ch model.Channel, address, subject, body string) error {
	var r *relay
	switch ch {
	case model.ChannelEmail:
		r = g.email
	case model.ChannelSMS:
		r = g.sms
		subject = ""
	default:
		return &SendError{Reason: ReasonInvalidAddress, Channel: ch, Err: fmt.Errorf("unknown channel %q", ch)}
	}

	if !r.br.TryAcquire() {
		return &SendError{Reason: ReasonTransportError, Channel: ch, Err: fmt.Errorf("breaker open")}
	}

	err := r.post(ctx, ch, sendPayload{To: address, Subject: subject, Body: body})
	if err != nil {
		r.br.OnFailure()
		return err
	}

	r.br.OnSuccess()
	return nil
}

func (r *relay) post(ctx context.Context, ch model.Channel, p sendPayload) error {
	b, _ := json.Marshal(p)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+r.sendPath, bytes.NewReader(b))
	if err != nil {
		return &SendError{Reason: ReasonTransportError, Channel: ch, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		// includes client timeout and context deadline
		return &SendError{Reason: ReasonTransportError, Channel: ch, Err: err}
	}

	defer res.Body.Close()

	switch {
	case res.StatusCode/100 == 2:
		return nil
	case res.StatusCode == http.StatusBadRequest || res.StatusCode == http.StatusUnprocessableEntity:
		return &SendError{Reason: ReasonInvalidAddress, Channel: ch, Err: fmt.Errorf("status=%d", res.StatusCode)}
	case res.StatusCode == http.StatusTooManyRequests:
		return &SendError{Reason: ReasonRateLimited, Channel: ch, Err: fmt.Errorf("status=%d", res.StatusCode)}
	default:
		return &SendError{Reason: ReasonTransportError, Channel: ch, Err: fmt.Errorf("status=%d", res.StatusCode)}
	}
}
