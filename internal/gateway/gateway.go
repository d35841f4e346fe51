// Package gateway abstracts the email/SMS transport behind a narrow Send
// interface. Duplicate sends on retry are acceptable: the underlying relays
// expose no dedup token, so delivery is at-least-once.
package gateway

import (
	"context"
	"fmt"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

// Reason classifies a delivery failure.
type Reason string

const (
	ReasonTransportError Reason = "transport_error"
	ReasonInvalidAddress Reason = "invalid_address"
	ReasonRateLimited    Reason = "rate_limited"
)

// SendError is the typed failure returned by a Gateway.
type SendError struct {
	Reason  Reason
	Channel model.Channel
	Err     error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", e.Channel, e.Reason)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt can plausibly succeed.
// A bad address never will.
func (e *SendError) Retryable() bool { return e.Reason != ReasonInvalidAddress }

// Gateway delivers one rendered message over the given channel.
// Implementations must bound the call with their own timeout; a timeout is a
// failure, never a success. Subject is ignored for SMS.
type Gateway interface {
	Send(ctx context.Context, ch model.Channel, address, subject, body string) error
}
