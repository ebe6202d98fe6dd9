package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrEndpointExpired  = errors.New("push endpoint expired")
	ErrEndpointRejected = errors.New("push endpoint rejected payload")
	ErrNetwork          = errors.New("push network failure")
	ErrMalformedKeys    = errors.New("malformed subscription keys")
)

// Payload is the JSON document delivered to the service worker.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
}

// PushTransport delivers one payload to one subscription.
type PushTransport interface {
	// Validate reports missing or unusable credentials. A non-nil error
	// wraps ErrConfiguration.
	Validate() error
	Send(ctx context.Context, sub *Subscription, payload Payload) error
}

// DeliveryError describes a failed send to a single endpoint. Kind is one
// of ErrEndpointExpired, ErrEndpointRejected, ErrNetwork, ErrMalformedKeys.
type DeliveryError struct {
	Endpoint   string
	Kind       error
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("push to %s: %v (status %d): %v", e.Endpoint, e.Kind, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("push to %s: %v (status %d)", e.Endpoint, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("push to %s: %v: %v", e.Endpoint, e.Kind, e.Err)
	}
	return fmt.Sprintf("push to %s: %v", e.Endpoint, e.Kind)
}

func (e *DeliveryError) Is(target error) bool {
	return e.Kind == target
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type EndpointResult struct {
	SubscriptionID string `json:"subscription_id"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
}

// DeliveryOutcome is the tally of one fan-out. It is informational and
// never decides whether a candidate is committed.
type DeliveryOutcome struct {
	Endpoints int              `json:"endpoints"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []EndpointResult `json:"results,omitempty"`
}

func (o DeliveryOutcome) Delivered() bool {
	return o.Succeeded > 0
}
