package student

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/notamil/backend/core"
)

// Plan tiers
const (
	// PlanCredits is the credit-only/guest tier: no subscription required,
	// submissions are gated by balance alone.
	PlanCredits = "credits"
	PlanMonthly = "monthly"
	PlanAnnual  = "annual"
)

var AllPlans = []string{PlanCredits, PlanMonthly, PlanAnnual}

// Ledger actions
const (
	ActionDebit  = "debit"
	ActionCredit = "credit"
)

type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Balance      int       `json:"balance"`
	Plan         string    `json:"plan"`
	EnrolledAt   time.Time `json:"enrolled_at"` // UTC
	ExpiresAt    time.Time `json:"expires_at"`  // UTC; zero for credit-only tier
	CreatedAt    time.Time `json:"created_at"`  // UTC
	UpdatedAt    time.Time `json:"updated_at"`  // UTC
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

// SubscriptionActive reports whether the subscription is still valid at the
// given instant. The comparison is by calendar day in loc: a subscription
// expiring today is still active.
func (s Student) SubscriptionActive(now time.Time, loc *time.Location) bool {
	if s.Plan == PlanCredits {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	ny, nm, nd := now.In(loc).Date()
	ey, em, ed := s.ExpiresAt.In(loc).Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)
	expiry := time.Date(ey, em, ed, 0, 0, 0, 0, loc)
	return !today.After(expiry)
}

// DaysRemaining returns the number of whole calendar days until expiry in
// loc; 0 on the expiry day itself, negative once expired.
func (s Student) DaysRemaining(now time.Time, loc *time.Location) int {
	ny, nm, nd := now.In(loc).Date()
	ey, em, ed := s.ExpiresAt.In(loc).Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)
	expiry := time.Date(ey, em, ed, 0, 0, 0, 0, loc)
	return int(expiry.Sub(today).Hours() / 24)
}

// LedgerEntry is an immutable audit row recording a single balance change.
// Entries are append-only: corrections are made with new opposite entries,
// never by editing an existing row.
type LedgerEntry struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	Action        string    `json:"action"` // debit | credit
	Amount        int       `json:"amount"`
	BalanceBefore int       `json:"balance_before"`
	BalanceAfter  int       `json:"balance_after"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// Authorization is the Subscription Guard's verdict on whether a student may
// submit new essays.
type Authorization struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	Name      string    `json:"name" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Password  string    `json:"password" validate:"required,min=8"`
	Plan      string    `json:"plan" validate:"required,plantier"`
	ExpiresAt time.Time `json:"expires_at"` // required for subscription tiers, see expiryStructValidation
	Credits   int       `json:"credits" validate:"gte=0"`
}

func (ns *NewStudent) Validate(svc Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ns.Email)
}
