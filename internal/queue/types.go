package queue

import (
	"time"

	"github.com/emanuel-epifani/nexo/internal/persist"
)

// State is a Message's position in the state machine from spec §4.4.
type State string

const (
	StatePending  State = "pending"
	StateScheduled State = "scheduled"
	StateInFlight State = "inflight"
	StateDead     State = "dead"
)

// Policy is a queue's configuration, fixed at Create time. Two Creates
// for the same name with an identical Policy are idempotent; differing
// policies fail with errors.CodeConflict (PolicyMismatch), per spec §4.4.
type Policy struct {
	VisibilityTimeout time.Duration `json:"visibility_timeout_ms"`
	MaxRetries        int           `json:"max_retries"`
	TTL               time.Duration `json:"ttl_ms"`
	Persistence       persist.Mode  `json:"persistence"`
	DefaultDelay      time.Duration `json:"default_delay_ms"`
}

// Equal reports whether two policies are the contract-relevant same
// policy (used by Create's idempotence check).
func (p Policy) Equal(o Policy) bool {
	return p.VisibilityTimeout == o.VisibilityTimeout &&
		p.MaxRetries == o.MaxRetries &&
		p.TTL == o.TTL &&
		p.Persistence == o.Persistence &&
		p.DefaultDelay == o.DefaultDelay
}

// Message is one unit of work. Its ID doubles as its delivery handle:
// a message has exactly one handle for its whole life, re-leased or
// not, which keeps Ack/Nack lookups a single map access.
type Message struct {
	ID             string
	Payload        []byte
	Priority       uint8
	Attempts       int
	State          State
	EnqueuedAt     time.Time
	NextVisibility time.Time // meaning depends on State: ready time (Scheduled) or lease expiry (InFlight)
	FailureReason  string
	seq            int64 // insertion sequence, breaks priority ties FIFO
}

// DeliveredMessage is what Consume hands back to a client.
type DeliveredMessage struct {
	Handle   string
	Payload  []byte
	Attempts int
	Priority uint8
}
