package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/X1ag/ReminderEngine/internal/domain"
	"github.com/X1ag/ReminderEngine/internal/logging"
)

const defaultEndpointConcurrency = 4

type DeliveryDispatcher struct {
	subs          domain.SubscriptionRepository
	transport     domain.PushTransport
	templates     Templates
	endpointLimit int
	logger        *logging.Logger
}

func NewDeliveryDispatcher(subs domain.SubscriptionRepository, transport domain.PushTransport, templates Templates, endpointLimit int, logger *logging.Logger) *DeliveryDispatcher {
	if endpointLimit <= 0 {
		endpointLimit = defaultEndpointConcurrency
	}
	return &DeliveryDispatcher{
		subs:          subs,
		transport:     transport,
		templates:     templates.withDefaults(),
		endpointLimit: endpointLimit,
		logger:        logging.OrNop(logger),
	}
}

// Dispatch sends the candidate's payload to every subscription of its user.
// It returns domain.ErrNoSubscriptions when the user has none and a
// *domain.StoreError when subscriptions could not be read; in both cases no
// endpoint was contacted.
func (d *DeliveryDispatcher) Dispatch(ctx context.Context, c domain.Candidate) (domain.DeliveryOutcome, error) {
	return d.SendToUser(ctx, c.UserID, d.templates.ForCandidate(c))
}

// SendToUser fans payload out to all of userID's endpoints and waits for
// every send to finish.
func (d *DeliveryDispatcher) SendToUser(ctx context.Context, userID string, payload domain.Payload) (domain.DeliveryOutcome, error) {
	subs, err := d.subs.GetByUserID(ctx, userID)
	if err != nil {
		return domain.DeliveryOutcome{}, &domain.StoreError{Op: "get subscriptions", Err: err}
	}
	if len(subs) == 0 {
		return domain.DeliveryOutcome{}, domain.ErrNoSubscriptions
	}
	return d.fanOut(ctx, subs, payload), nil
}

func (d *DeliveryDispatcher) fanOut(ctx context.Context, subs []*domain.Subscription, payload domain.Payload) domain.DeliveryOutcome {
	results := make([]domain.EndpointResult, len(subs))

	var g errgroup.Group
	g.SetLimit(d.endpointLimit)
	for i, sub := range subs {
		g.Go(func() error {
			err := d.send(ctx, sub, payload)
			results[i] = domain.EndpointResult{SubscriptionID: sub.ID, Success: err == nil}
			if err != nil {
				results[i].Error = err.Error()
				d.logger.Warn(ctx, "push failed",
					zap.String("subscription_id", sub.ID),
					zap.String("user_id", sub.UserID),
					zap.Error(err),
				)
			}
			// Failures are folded into results so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	outcome := domain.DeliveryOutcome{Endpoints: len(subs), Results: results}
	for _, r := range results {
		if r.Success {
			outcome.Succeeded++
		} else {
			outcome.Failed++
		}
	}
	return outcome
}

func (d *DeliveryDispatcher) send(ctx context.Context, sub *domain.Subscription, payload domain.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("push transport panic: %v", r)
		}
	}()
	return d.transport.Send(ctx, sub, payload)
}
