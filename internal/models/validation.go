package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValidationStep identifies which sub-check a queued message represents.
type ValidationStep string

const (
	StepReachability ValidationStep = "REACHABILITY"
	StepSafety       ValidationStep = "SAFETY"
)

// URLSafety is the validation verdict for a URL. Pending is the only
// non-terminal state besides Unknown; terminal states are absorbing.
type URLSafety string

const (
	SafetyPending     URLSafety = "Pending"
	SafetySafe        URLSafety = "Safe"
	SafetyUnsafe      URLSafety = "Unsafe"
	SafetyUnreachable URLSafety = "Unreachable"
	SafetyUnknown     URLSafety = "Unknown"
	SafetyError       URLSafety = "Error"
)

// IsTerminal reports whether the status is absorbing.
func (s URLSafety) IsTerminal() bool {
	switch s {
	case SafetySafe, SafetyUnsafe, SafetyUnreachable, SafetyError:
		return true
	}
	return false
}

// statusEnvelope is the wire form of URLSafety on the result queue:
// a tagged object discriminated on the "type" field.
type statusEnvelope struct {
	Type string `json:"type"`
}

// MarshalJSON encodes the status as {"type":"<variant>"}.
func (s URLSafety) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusEnvelope{Type: string(s)})
}

// UnmarshalJSON decodes the tagged form and rejects unknown variants so a
// malformed verdict is dropped at the sink instead of poisoning the store.
func (s *URLSafety) UnmarshalJSON(data []byte) error {
	var env statusEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("status is not a tagged object: %w", err)
	}
	switch URLSafety(env.Type) {
	case SafetyPending, SafetySafe, SafetyUnsafe, SafetyUnreachable, SafetyUnknown, SafetyError:
		*s = URLSafety(env.Type)
		return nil
	}
	return fmt.Errorf("unknown status variant %q", env.Type)
}

// ValidationMessage is carried on the work queue. The ID stays stable
// across retries and step transitions; serialization round-trips losslessly.
type ValidationMessage struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"` // Canonical form
	CreatedAt time.Time      `json:"createdAt"`
	Retries   int            `json:"retries"`
	Step      ValidationStep `json:"step"`
}

// NewValidationMessage creates a work-queue message at the initial step.
func NewValidationMessage(id, canonicalURL string) *ValidationMessage {
	return &ValidationMessage{
		ID:        id,
		URL:       canonicalURL,
		CreatedAt: time.Now().UTC(),
		Step:      StepReachability,
	}
}

// WithStep returns a copy of the message flipped to the given step.
// All other fields, including the id, are preserved.
func (m *ValidationMessage) WithStep(step ValidationStep) *ValidationMessage {
	copied := *m
	copied.Step = step
	return &copied
}

// ValidationJob is the authoritative per-id state kept in the job store.
// Status transitions happen only through the orchestrator and result sink.
type ValidationJob struct {
	ID        string     `json:"id" badgerhold:"key"`
	URL       string     `json:"url"`
	Status    URLSafety  `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Retries   int        `json:"retries"`
}

// ValidationResult is carried on the result queue.
type ValidationResult struct {
	JobID  string    `json:"jobId"`
	Status URLSafety `json:"status"`
}
