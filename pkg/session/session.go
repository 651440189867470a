// Package session holds per-conversation turn state. A session is owned by
// exactly one orchestrator turn at a time; the store serializes turns on the
// same key and evicts idle sessions after a TTL.
package session

import (
	"time"

	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/intent"
)

// Stage is the coarse position of a conversation.
type Stage string

const (
	StageNew                     Stage = "NEW"
	StageAwaitingVerticalConfirm Stage = "AWAITING_VERTICAL_CONFIRM"
	StageAwaitingIntake          Stage = "AWAITING_INTAKE"
	StageAwaitingSlotChoice      Stage = "AWAITING_SLOT_CHOICE"
	StageAwaitingDeposit         Stage = "AWAITING_DEPOSIT"
	StageAwaitingConfirmation    Stage = "AWAITING_CONFIRMATION"
	StageCompleted               Stage = "COMPLETED"
)

// Pending ties an outstanding confirmation token to the execute step it
// guards. At most one confirmation is outstanding per session.
type Pending struct {
	TokenID   string
	Prompt    string
	Held      flow.ExecuteStep
	ExpiresAt time.Time
}

// Session is the mutable state of one conversation.
type Session struct {
	ID            string
	Stage         Stage
	DetectedSpine string
	Entities      flow.EntityBag
	OpenQuestion  string
	MissingFields []string
	SlotOptions   []string
	Pending       *Pending
	LastIntents   []intent.Intent
	UpdatedAt     time.Time
}

// Reset wipes everything except the id, returning the session to NEW.
func (s *Session) Reset() {
	s.Stage = StageNew
	s.DetectedSpine = ""
	s.Entities = make(flow.EntityBag)
	s.OpenQuestion = ""
	s.MissingFields = nil
	s.SlotOptions = nil
	s.Pending = nil
	s.LastIntents = nil
}
