package essay

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/student"
)

var (
	// errors
	ErrNotFound                 = errors.New("essay not found")
	ErrCorrectorNotFound        = errors.New("corrector not found")
	ErrInvalidTransition        = errors.New("operation not allowed in the essay's current status")
	ErrCorrectionAlreadyStarted = errors.New("correction has already started")
)

type (
	Repository interface {
		CreateEssay(ctx context.Context, e Essay) (Essay, error)
		GetEssay(ctx context.Context, id string) (Essay, error)
		// UpdateEssay writes the full row guarded by Essay.Version and bumps
		// it; returns core.ErrWriteConflict when the write did not affect a
		// row.
		UpdateEssay(ctx context.Context, e Essay) (Essay, error)
		// UpdateSlot writes a single correction slot. Slot writes are
		// independent: two correctors grading different slots of the same
		// essay never block each other.
		UpdateSlot(ctx context.Context, essayID string, idx int, slot CorrectionSlot) (Essay, error)
		// DeleteEssay hard-deletes the row. Only the orchestrator's
		// cancellation path may call it, after verifying no slot started.
		DeleteEssay(ctx context.Context, id string) error
		QueryEssaysByOwner(ctx context.Context, ownerEmail string, ordering ...core.DBOrdering) ([]Essay, error)

		GetCorrector(ctx context.Context, email string) (Corrector, error)
		UpsertCorrector(ctx context.Context, c Corrector) (Corrector, error)
	}

	Service interface {
		// Submit authorizes the student, debits the kind's credit cost and
		// creates the essay in awaiting_correction. If essay creation fails
		// after a successful debit, the debit is compensated before the
		// error is returned.
		Submit(ctx context.Context, ne NewEssay) (Essay, error)
		Get(ctx context.Context, id string) (Essay, error)
		QueryByOwner(ctx context.Context, ownerEmail string, ordering ...core.DBOrdering) ([]Essay, error)
		// AssignCorrectors sets the correction-slot identities and the
		// correction mode. Essay status is unchanged.
		AssignCorrectors(ctx context.Context, prin core.Principal, essayID string, a Assignment) (Essay, error)
		// GradeSlot writes one corrector's scores into a slot (idempotent
		// overwrite) and finalizes the essay once the required slots are
		// done. slotIdx is 1-based.
		GradeSlot(ctx context.Context, prin core.Principal, essayID string, slotIdx int, g SlotGrade) (Essay, error)
		// Return moves an ungraded essay to returned with a justification.
		Return(ctx context.Context, prin core.Principal, essayID, justification string) (Essay, error)
		// AcknowledgeReturn records that the student saw the return.
		// Idempotent: re-acknowledging is a no-op.
		AcknowledgeReturn(ctx context.Context, essayID, studentEmail string) error
		// Resubmit replaces the body of a returned essay and moves it back
		// to awaiting_correction, clearing all grading and return state but
		// keeping corrector assignments. No credits are charged.
		Resubmit(ctx context.Context, essayID, studentEmail, newBody string) (Essay, error)
		// Cancel hard-deletes an uncorrected essay and refunds the credits
		// originally debited for its kind. Returns the refunded amount.
		Cancel(ctx context.Context, essayID, studentEmail string) (int, error)
		// RegisterCorrector creates or updates a corrector identity.
		RegisterCorrector(ctx context.Context, prin core.Principal, c Corrector) (Corrector, error)
	}

	service struct {
		repo     Repository
		students student.Service
		mailSvc  core.EmailService
		logger   core.Logger
		retry    core.RetryPolicy
		nowFunc  func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	students student.Service,
	mailSvc core.EmailService,
	logger core.Logger,
	retry core.RetryPolicy,
) Service {
	return &service{
		repo:     repo,
		students: students,
		mailSvc:  mailSvc,
		logger:   logger,
		retry:    retry,
		nowFunc:  time.Now,
	}
}

func (svc *service) Submit(ctx context.Context, ne NewEssay) (Essay, error) {
	if err := ne.Validate(); err != nil {
		return Essay{}, err
	}

	std, err := svc.students.GetByEmail(ctx, ne.StudentEmail)
	if err != nil {
		return Essay{}, err
	}

	auth, err := svc.students.Authorize(ctx, std.ID)
	if err != nil {
		return Essay{}, errors.Wrap(err, "authorizing submission")
	}
	if !auth.Allowed {
		return Essay{}, core.NewValidationError(errors.New(auth.Reason))
	}

	// the debit must succeed before the essay row exists: no partial state
	cost := CreditCost(ne.Kind)
	if cost > 0 {
		if _, err = svc.students.Debit(ctx, std.ID, cost, fmt.Sprintf("essay submission (%s)", ne.Kind)); err != nil {
			return Essay{}, err
		}
	}

	now := svc.nowFunc().UTC()
	e := Essay{
		ID:          uuid.New().String(),
		OwnerEmail:  std.Email,
		Theme:       ne.Theme,
		Kind:        ne.Kind,
		Body:        ne.Body,
		Manuscript:  ne.Manuscript,
		Mode:        ModeSingle,
		Status:      StatusAwaitingCorrection,
		SubmittedAt: now,
		UpdatedAt:   now,
		Version:     1,
	}
	for i := range e.Slots {
		e.Slots[i].Status = SlotPending
	}

	created, err := svc.repo.CreateEssay(ctx, e)
	if err != nil {
		if cost > 0 {
			// compensate the debit: the student must not pay for an essay
			// that was never created
			if _, cerr := svc.students.Credit(ctx, std.ID, cost, "submission reversal: essay creation failed"); cerr != nil {
				svc.logger.Error("ledger compensation failed", cerr, map[string]interface{}{"student_id": std.ID, "amount": cost})
				return Essay{}, core.NewShutdownError(
					fmt.Sprintf("essay creation failed and debit compensation failed for student %s: %v", std.ID, cerr))
			}
		}
		return Essay{}, errors.Wrap(err, "creating essay")
	}
	return created, nil
}

func (svc *service) Get(ctx context.Context, id string) (Essay, error) {
	return svc.repo.GetEssay(ctx, id)
}

func (svc *service) QueryByOwner(ctx context.Context, ownerEmail string, ordering ...core.DBOrdering) ([]Essay, error) {
	return svc.repo.QueryEssaysByOwner(ctx, core.CleanString(ownerEmail, true /* lower */), ordering...)
}

func (svc *service) AssignCorrectors(ctx context.Context, prin core.Principal, essayID string, a Assignment) (Essay, error) {
	if !prin.IsAdmin() {
		return Essay{}, core.ErrPermissionDenied
	}
	if err := a.Validate(); err != nil {
		return Essay{}, err
	}

	e, err := svc.repo.GetEssay(ctx, essayID)
	if err != nil {
		return Essay{}, err
	}
	if e.Status == StatusGraded {
		return Essay{}, ErrInvalidTransition
	}

	for i, email := range a.Correctors {
		c, err := svc.repo.GetCorrector(ctx, email)
		if err != nil {
			if errors.Cause(err) == ErrCorrectorNotFound {
				return Essay{}, core.NewValidationError(err, core.FieldError{Field: "correctors", Error: fmt.Sprintf("%s: %s", email, err)})
			}
			return Essay{}, errors.Wrap(err, "finding corrector")
		}
		if !c.CanTake(e) {
			kind := "typed"
			if e.Manuscript {
				kind = "manuscript"
			}
			return Essay{}, core.NewValidationError(nil, core.FieldError{
				Field: "correctors",
				Error: fmt.Sprintf("%s does not accept %s submissions", email, kind),
			})
		}
		e.Slots[i].Corrector = email
	}
	// a dual assignment shrinking to single frees the second slot
	if len(a.Correctors) == 1 && !e.Slots[1].Started() {
		e.Slots[1].Corrector = ""
	}
	e.Mode = a.Mode()
	e.UpdatedAt = svc.nowFunc().UTC()

	return svc.repo.UpdateEssay(ctx, e)
}

func (svc *service) GradeSlot(ctx context.Context, prin core.Principal, essayID string, slotIdx int, g SlotGrade) (Essay, error) {
	if slotIdx < 1 || slotIdx > NumSlots {
		return Essay{}, core.NewValidationError(nil, core.FieldError{Field: "slot_index", Error: "slot index must be 1 or 2"})
	}
	idx := slotIdx - 1

	e, err := svc.repo.GetEssay(ctx, essayID)
	if err != nil {
		return Essay{}, err
	}
	if e.Status != StatusAwaitingCorrection {
		return Essay{}, ErrInvalidTransition
	}

	slot := e.Slots[idx]
	if slot.Corrector == "" {
		return Essay{}, core.NewValidationError(nil, core.FieldError{
			Field: "slot_index",
			Error: fmt.Sprintf("no corrector assigned to slot %d", slotIdx),
		})
	}
	if !prin.IsAdmin() && !(prin.IsCorrector() && core.CleanString(prin.Email, true /* lower */) == slot.Corrector) {
		return Essay{}, core.ErrPermissionDenied
	}

	// overwrite the slot; re-grading is idempotent and never touches the
	// other slot
	slot.Status = SlotDone
	for i, score := range g.Scores {
		slot.Scores[i] = null.IntFrom(clampScore(score))
		slot.Comments[i] = nullString(g.Comments[i])
	}
	slot.Note = nullString(g.Note)
	slot.AudioRef = nullString(g.AudioRef)

	var updated Essay
	err = svc.retry.Run(func() error {
		var err error
		updated, err = svc.repo.UpdateSlot(ctx, essayID, idx, slot)
		return err
	})
	if err != nil {
		return Essay{}, errors.Wrap(err, "writing correction slot")
	}

	if updated.DoneSlots() >= updated.RequiredSlots() {
		return svc.finalize(ctx, updated)
	}
	return updated, nil
}

// finalize merges the done slots into the final score and moves the essay to
// graded. The write is attempted with bounded retry; each attempt re-reads
// the essay so the merge always sees both slots in their stable state.
func (svc *service) finalize(ctx context.Context, e Essay) (Essay, error) {
	var final Essay
	err := svc.retry.Run(func() error {
		fresh, err := svc.repo.GetEssay(ctx, e.ID)
		if err != nil {
			return err
		}
		score, err := Merge(fresh)
		if err != nil {
			return errors.Wrap(err, "merging corrections")
		}
		fresh.FinalScore = null.IntFrom(score)
		fresh.Status = StatusGraded
		fresh.CorrectedAt = null.TimeFrom(svc.nowFunc().UTC())
		fresh.UpdatedAt = svc.nowFunc().UTC()
		final, err = svc.repo.UpdateEssay(ctx, fresh)
		return err
	})
	if err != nil {
		return Essay{}, errors.Wrap(err, "finalizing essay")
	}

	svc.sendGradedMail(final)
	return final, nil
}

func (svc *service) Return(ctx context.Context, prin core.Principal, essayID, justification string) (Essay, error) {
	if !prin.IsAdmin() && !prin.IsCorrector() {
		return Essay{}, core.ErrPermissionDenied
	}
	justification = core.CleanString(justification)
	if justification == "" {
		return Essay{}, core.NewValidationError(nil, core.FieldError{Field: "justification", Error: "this field is required"})
	}

	e, err := svc.repo.GetEssay(ctx, essayID)
	if err != nil {
		return Essay{}, err
	}
	// a partially or fully graded essay can no longer be returned
	if e.Status != StatusAwaitingCorrection || e.DoneSlots() > 0 {
		return Essay{}, ErrInvalidTransition
	}

	now := svc.nowFunc().UTC()
	e.Status = StatusReturned
	e.ReturnJustification = null.StringFrom(justification)
	e.ReturnedBy = null.StringFrom(core.CleanString(prin.Email, true /* lower */))
	e.ReturnedAt = null.TimeFrom(now)
	e.ReturnSeenAt = null.Time{}
	e.UpdatedAt = now

	returned, err := svc.repo.UpdateEssay(ctx, e)
	if err != nil {
		return Essay{}, err
	}

	svc.sendReturnedMail(returned)
	return returned, nil
}

func (svc *service) AcknowledgeReturn(ctx context.Context, essayID, studentEmail string) error {
	e, err := svc.repo.GetEssay(ctx, essayID)
	if err != nil {
		return err
	}
	if e.OwnerEmail != core.CleanString(studentEmail, true /* lower */) {
		return core.ErrPermissionDenied
	}
	if e.ReturnSeenAt.Valid {
		return nil // already acknowledged
	}
	if e.Status != StatusReturned {
		return ErrInvalidTransition
	}

	e.ReturnSeenAt = null.TimeFrom(svc.nowFunc().UTC())
	e.UpdatedAt = svc.nowFunc().UTC()
	_, err = svc.repo.UpdateEssay(ctx, e)
	return err
}

func (svc *service) Resubmit(ctx context.Context, essayID, studentEmail, newBody string) (Essay, error) {
	newBody = core.CleanString(newBody)
	if newBody == "" {
		return Essay{}, core.NewValidationError(nil, core.FieldError{Field: "body", Error: "this field is required"})
	}

	e, err := svc.repo.GetEssay(ctx, essayID)
	if err != nil {
		return Essay{}, err
	}
	if e.OwnerEmail != core.CleanString(studentEmail, true /* lower */) {
		return Essay{}, core.ErrPermissionDenied
	}
	if e.Status != StatusReturned {
		return Essay{}, ErrInvalidTransition
	}

	// fresh awaiting_correction: grading and return state wiped, corrector
	// assignments preserved, no additional credits charged
	for i := range e.Slots {
		e.Slots[i].clear()
	}
	e.FinalScore = null.Int{}
	e.ReturnJustification = null.String{}
	e.ReturnedBy = null.String{}
	e.ReturnedAt = null.Time{}
	e.ReturnSeenAt = null.Time{}
	e.CorrectedAt = null.Time{}
	e.Body = newBody
	e.Status = StatusAwaitingCorrection
	e.UpdatedAt = svc.nowFunc().UTC()

	return svc.repo.UpdateEssay(ctx, e)
}

func (svc *service) Cancel(ctx context.Context, essayID, studentEmail string) (int, error) {
	e, err := svc.repo.GetEssay(ctx, essayID)
	if err != nil {
		return 0, err
	}
	if e.OwnerEmail != core.CleanString(studentEmail, true /* lower */) {
		return 0, core.ErrPermissionDenied
	}
	if e.Status != StatusAwaitingCorrection && e.Status != StatusReturned {
		return 0, ErrInvalidTransition
	}
	if e.CorrectionStarted() {
		return 0, ErrCorrectionAlreadyStarted
	}

	if err = svc.repo.DeleteEssay(ctx, e.ID); err != nil {
		return 0, errors.Wrap(err, "deleting essay")
	}

	refund := CreditCost(e.Kind)
	if refund > 0 {
		std, err := svc.students.GetByEmail(ctx, e.OwnerEmail)
		if err == nil {
			_, err = svc.students.Credit(ctx, std.ID, refund, fmt.Sprintf("essay cancellation refund (%s)", e.Kind))
		}
		if err != nil {
			// the essay is gone but the credits were not restored; this is a
			// real accounting discrepancy and must not be swallowed
			svc.logger.Error("cancellation refund failed", err, map[string]interface{}{"essay_id": e.ID, "owner": e.OwnerEmail})
			return 0, core.NewShutdownError(
				fmt.Sprintf("essay %s deleted but refund of %d credits failed for %s: %v", e.ID, refund, e.OwnerEmail, err))
		}
	}
	return refund, nil
}

func (svc *service) RegisterCorrector(ctx context.Context, prin core.Principal, c Corrector) (Corrector, error) {
	if !prin.IsAdmin() {
		return Corrector{}, core.ErrPermissionDenied
	}
	c.Email = core.CleanString(c.Email, true /* lower */)
	c.Name = core.CleanString(c.Name)
	if c.Email == "" {
		return Corrector{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: "this field is required"})
	}
	if !c.AcceptsTyped && !c.AcceptsManuscript {
		return Corrector{}, core.NewValidationError(nil, core.FieldError{Field: "accepts_typed", Error: "corrector must accept at least one intake"})
	}
	return svc.repo.UpsertCorrector(ctx, c)
}

// Mail

func (svc *service) sendGradedMail(e Essay) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: e.OwnerEmail}},
		Subject:      "Your essay has been graded",
		TemplateName: "essay-graded",
		TemplateData: struct {
			Theme string
			Score int64
		}{e.Theme, int64(e.FinalScore.Int)},
	})
}

func (svc *service) sendReturnedMail(e Essay) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: e.OwnerEmail}},
		Subject:      "Your essay needs changes",
		TemplateName: "essay-returned",
		TemplateData: struct {
			Theme         string
			Justification string
		}{e.Theme, e.ReturnJustification.String},
	})
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxCompetencyScore {
		return MaxCompetencyScore
	}
	return score
}

func nullString(s string) null.String {
	s = core.CleanString(s)
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}
