package student

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/notamil/backend/core"
)

var (
	// errors
	ErrNotFound            = errors.New("student not found")
	ErrEmailExists         = errors.New("a student with this email already exists")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string) error
		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByEmail(ctx context.Context, email string) (Student, error)
		// ApplyLedgerEntry updates the profile balance and appends the audit
		// row within the same transaction: a caller never observes one
		// without the other. The entry's BalanceBefore must match the stored
		// balance or core.ErrWriteConflict is returned.
		ApplyLedgerEntry(ctx context.Context, entry LedgerEntry) (Student, error)
		// QueryLedgerEntries returns a student's audit rows, newest first.
		QueryLedgerEntries(ctx context.Context, studentID string) ([]LedgerEntry, error)
	}

	Service interface {
		Enroll(ctx context.Context, ns NewStudent) (Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		GetByEmail(ctx context.Context, email string) (Student, error)
		CheckEmailUniqueness(email string) error
		// Authorize is the Subscription Guard: it reports whether the student
		// may submit new essays. Pure read, no mutation.
		Authorize(ctx context.Context, studentID string) (Authorization, error)
		// Debit takes amount credits off the student's balance and appends
		// the audit row. Fails with ErrInsufficientCredits before any write
		// when amount exceeds the balance.
		Debit(ctx context.Context, studentID string, amount int, reason string) (Student, error)
		// Credit adds amount credits to the student's balance and appends
		// the audit row.
		Credit(ctx context.Context, studentID string, amount int, reason string) (Student, error)
		LedgerHistory(ctx context.Context, studentID string) ([]LedgerEntry, error)
	}

	service struct {
		repo    Repository
		loc     *time.Location
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{
		repo:    repo,
		loc:     core.Conf.Location(),
		nowFunc: time.Now,
	}
}

func (svc *service) Enroll(ctx context.Context, ns NewStudent) (Student, error) {
	now := svc.nowFunc().UTC()
	std := Student{
		ID:         uuid.New().String(),
		Name:       ns.Name,
		Email:      ns.Email,
		Plan:       ns.Plan,
		EnrolledAt: now,
		ExpiresAt:  ns.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := std.SetPassword(ns.Password); err != nil {
		return Student{}, err
	}
	std, err := svc.repo.CreateStudent(ctx, std)
	if err != nil {
		return Student{}, err
	}
	if ns.Credits > 0 {
		return svc.Credit(ctx, std.ID, ns.Credits, "initial credit grant")
	}
	return std, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Student, error) {
	return svc.repo.GetStudentByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) CheckEmailUniqueness(email string) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Authorize(ctx context.Context, studentID string) (Authorization, error) {
	std, err := svc.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		return Authorization{}, err
	}
	if std.Plan == PlanCredits {
		return Authorization{Allowed: true}, nil
	}
	if std.SubscriptionActive(svc.nowFunc(), svc.loc) {
		return Authorization{Allowed: true}, nil
	}
	return Authorization{
		Allowed: false,
		Reason:  fmt.Sprintf("subscription expired on %s", std.ExpiresAt.In(svc.loc).Format("2006-01-02")),
	}, nil
}

func (svc *service) Debit(ctx context.Context, studentID string, amount int, reason string) (Student, error) {
	if amount <= 0 {
		return Student{}, errors.Errorf("invalid debit amount: %d", amount)
	}
	std, err := svc.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		return Student{}, err
	}
	if amount > std.Balance {
		return Student{}, ErrInsufficientCredits
	}
	return svc.repo.ApplyLedgerEntry(ctx, LedgerEntry{
		ID:            uuid.New().String(),
		StudentID:     std.ID,
		Action:        ActionDebit,
		Amount:        amount,
		BalanceBefore: std.Balance,
		BalanceAfter:  std.Balance - amount,
		Reason:        reason,
		CreatedAt:     svc.nowFunc().UTC(),
	})
}

func (svc *service) Credit(ctx context.Context, studentID string, amount int, reason string) (Student, error) {
	if amount <= 0 {
		return Student{}, errors.Errorf("invalid credit amount: %d", amount)
	}
	std, err := svc.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		return Student{}, err
	}
	return svc.repo.ApplyLedgerEntry(ctx, LedgerEntry{
		ID:            uuid.New().String(),
		StudentID:     std.ID,
		Action:        ActionCredit,
		Amount:        amount,
		BalanceBefore: std.Balance,
		BalanceAfter:  std.Balance + amount,
		Reason:        reason,
		CreatedAt:     svc.nowFunc().UTC(),
	})
}

func (svc *service) LedgerHistory(ctx context.Context, studentID string) ([]LedgerEntry, error) {
	if _, err := svc.repo.GetStudentByID(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryLedgerEntries(ctx, studentID)
}
