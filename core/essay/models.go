package essay

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/notamil/backend/core"
)

// Submission kinds
type Kind string

const (
	KindRegular   Kind = "regular"
	KindSimulado  Kind = "simulado"
	KindExercicio Kind = "exercicio"
	KindVisitor   Kind = "visitor"
)

var AllKinds = []Kind{KindRegular, KindSimulado, KindExercicio, KindVisitor}

// creditCosts is the submission-kind cost table. It is orchestrator policy:
// the record store itself is cost-agnostic.
var creditCosts = map[Kind]int{
	KindRegular:   1,
	KindSimulado:  2,
	KindExercicio: 0,
	KindVisitor:   0,
}

// CreditCost returns the number of credits debited when submitting an essay
// of the given kind, and credited back when it is cancelled.
func CreditCost(k Kind) int {
	return creditCosts[k]
}

// Essay statuses
type Status string

const (
	StatusAwaitingCorrection Status = "awaiting_correction"
	StatusGraded             Status = "graded"
	StatusReturned           Status = "returned"
)

// Correction modes. The mode is decided at assignment time, never inferred
// from which slot fields happen to be populated.
type CorrectionMode string

const (
	ModeSingle CorrectionMode = "single"
	ModeDual   CorrectionMode = "dual"
)

// Slot statuses
type SlotStatus string

const (
	SlotPending SlotStatus = "pending"
	SlotDone    SlotStatus = "done"
)

const (
	NumCompetencies    = 5
	MaxCompetencyScore = 200
	NumSlots           = 2
)

// CorrectionSlot is the data owned by one assigned corrector grading an
// essay: five competency scores in [0,200], per-competency comments, an
// overall note and an optional audio-feedback reference.
type CorrectionSlot struct {
	Corrector string                       `json:"corrector,omitempty"` // corrector email; empty if unassigned
	Status    SlotStatus                   `json:"status"`
	Scores    [NumCompetencies]null.Int    `json:"scores"`
	Comments  [NumCompetencies]null.String `json:"comments"`
	Note      null.String                  `json:"note,omitempty"`
	AudioRef  null.String                  `json:"audio_ref,omitempty"`
}

// Started reports whether the slot holds any competency value. A started
// slot blocks cancellation of the essay.
func (s CorrectionSlot) Started() bool {
	for _, sc := range s.Scores {
		if sc.Valid {
			return true
		}
	}
	return false
}

// Sum adds up the slot's five competency scores.
func (s CorrectionSlot) Sum() int {
	var sum int
	for _, sc := range s.Scores {
		sum += int(sc.Int)
	}
	return sum
}

// clear wipes all grading data but keeps the corrector assignment, so the
// same corrector continues after a resubmission.
func (s *CorrectionSlot) clear() {
	s.Status = SlotPending
	s.Scores = [NumCompetencies]null.Int{}
	s.Comments = [NumCompetencies]null.String{}
	s.Note = null.String{}
	s.AudioRef = null.String{}
}

type Essay struct {
	ID         string         `json:"id"`
	OwnerEmail string         `json:"owner_email"` // normalized (lower-cased, trimmed)
	Theme      string         `json:"theme"`
	Kind       Kind           `json:"kind"`
	Body       string         `json:"body"` // plain text, or manuscript image ref
	Manuscript bool           `json:"manuscript"`
	Mode       CorrectionMode `json:"mode"`
	Status     Status         `json:"status"`

	Slots      [NumSlots]CorrectionSlot `json:"slots"`
	FinalScore null.Int                 `json:"final_score,omitempty"`

	// return metadata; set only while Status is StatusReturned
	ReturnJustification null.String `json:"return_justification,omitempty"`
	ReturnedBy          null.String `json:"returned_by,omitempty"`
	ReturnedAt          null.Time   `json:"returned_at,omitempty"`
	ReturnSeenAt        null.Time   `json:"return_seen_at,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"` // UTC
	CorrectedAt null.Time `json:"corrected_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"` // UTC

	// Version guards full-row writes; see Repository.UpdateEssay.
	Version int `json:"-"`
}

// RequiredSlots is the number of correction slots that must be done before
// the essay can be finalized.
func (e Essay) RequiredSlots() int {
	if e.Mode == ModeDual {
		return 2
	}
	return 1
}

// DoneSlots counts correction slots marked done.
func (e Essay) DoneSlots() int {
	var n int
	for _, s := range e.Slots {
		if s.Status == SlotDone {
			n++
		}
	}
	return n
}

// CorrectionStarted reports whether any slot holds a competency value.
func (e Essay) CorrectionStarted() bool {
	for _, s := range e.Slots {
		if s.Started() {
			return true
		}
	}
	return false
}

// Corrector is a registered corrector identity with its declared intake
// capabilities.
type Corrector struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	AcceptsTyped      bool   `json:"accepts_typed"`
	AcceptsManuscript bool   `json:"accepts_manuscript"`
}

// CanTake reports whether the corrector's intake capabilities match the
// essay's body representation.
func (c Corrector) CanTake(e Essay) bool {
	if e.Manuscript {
		return c.AcceptsManuscript
	}
	return c.AcceptsTyped
}

// NewEssay contains information needed to submit a new Essay.
type NewEssay struct {
	StudentEmail string `json:"student_email" validate:"required,email"`
	Theme        string `json:"theme" validate:"required"`
	Body         string `json:"body" validate:"required"`
	Kind         Kind   `json:"kind" validate:"required,essaykind"`
	Manuscript   bool   `json:"manuscript"`
}

func (ne *NewEssay) Validate() error {
	ne.StudentEmail = core.CleanString(ne.StudentEmail, true /* lower */)
	ne.Theme = core.CleanString(ne.Theme)
	ne.Body = core.CleanString(ne.Body)
	return core.Validate.Struct(ne)
}

// SlotGrade is one corrector's grade for one correction slot. Out-of-range
// scores are clamped to [0,200], not rejected, to tolerate UI rounding.
type SlotGrade struct {
	Scores   [NumCompetencies]int    `json:"scores"`
	Comments [NumCompetencies]string `json:"comments"`
	Note     string                  `json:"note"`
	AudioRef string                  `json:"audio_ref"`
}

// Assignment sets the correction slot identities and the correction mode.
type Assignment struct {
	Correctors []string `json:"correctors" validate:"required,min=1,max=2,dive,required,email"`
}

func (a *Assignment) Validate() error {
	for i, c := range a.Correctors {
		a.Correctors[i] = core.CleanString(c, true /* lower */)
	}
	return core.Validate.Struct(a)
}

// Mode returns the correction mode implied by the number of assigned
// correctors.
func (a Assignment) Mode() CorrectionMode {
	if len(a.Correctors) == 2 {
		return ModeDual
	}
	return ModeSingle
}
