package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	VisitorID  string    `json:"visitor_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome,omitempty"`
	PolicyHash string    `json:"policy_hash,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}
