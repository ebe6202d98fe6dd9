package domain

import "time"

type CandidateStatus string

const (
	CandidateDelivered       CandidateStatus = "delivered"
	CandidatePartial         CandidateStatus = "partial"
	CandidateFailed          CandidateStatus = "failed"
	CandidateNoSubscriptions CandidateStatus = "no_subscriptions"
	CandidateLookupFailed    CandidateStatus = "lookup_failed"
	CandidateCancelled       CandidateStatus = "cancelled"
)

// CandidateDetail is the per-candidate line of a pass report.
type CandidateDetail struct {
	Type      string          `json:"type"`
	Policy    string          `json:"policy"`
	UserID    string          `json:"user_id"`
	ItemIDs   []string        `json:"item_ids"`
	Count     int             `json:"count"`
	Status    CandidateStatus `json:"status"`
	Delivery  DeliveryOutcome `json:"delivery"`
	Committed bool            `json:"committed"`
	Error     string          `json:"error,omitempty"`
}

type QueryFailure struct {
	Query string `json:"query"`
	Error string `json:"error"`
}

// Report summarises one pass. Processed mirrors len(Details).
type Report struct {
	PassID          string            `json:"pass_id"`
	StartedAt       time.Time         `json:"started_at"`
	DurationMS      int64             `json:"duration_ms"`
	Processed       int               `json:"processed"`
	Considered      int               `json:"considered"`
	Delivered       int               `json:"delivered"`
	PartialFailures int               `json:"partial_failures"`
	TotalFailures   int               `json:"total_failures"`
	NoSubscriptions int               `json:"no_subscriptions"`
	CommitFailures  int               `json:"commit_failures"`
	QueryFailures   []QueryFailure    `json:"query_failures,omitempty"`
	Aborted         bool              `json:"aborted"`
	Error           string            `json:"error,omitempty"`
	Details         []CandidateDetail `json:"details"`
}

// Tally recomputes the counters from Details.
func (r *Report) Tally() {
	r.Processed = len(r.Details)
	r.Delivered, r.PartialFailures, r.TotalFailures = 0, 0, 0
	r.NoSubscriptions, r.CommitFailures = 0, 0

	for _, d := range r.Details {
		switch d.Status {
		case CandidateDelivered:
			r.Delivered++
		case CandidatePartial:
			r.Delivered++
			r.PartialFailures++
		case CandidateFailed, CandidateLookupFailed:
			r.TotalFailures++
		case CandidateNoSubscriptions:
			r.NoSubscriptions++
		}
		if d.Status != CandidateCancelled && d.Status != CandidateLookupFailed && !d.Committed {
			r.CommitFailures++
		}
	}
}
