package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/student"
)

type studentRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	Balance      int       `db:"balance"`
	Plan         string    `db:"plan"`
	EnrolledAt   time.Time `db:"enrolled_at"`
	ExpiresAt    null.Time `db:"expires_at"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r studentRow) toCore() student.Student {
	std := student.Student{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Balance:      r.Balance,
		Plan:         r.Plan,
		EnrolledAt:   r.EnrolledAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.ExpiresAt.Valid {
		std.ExpiresAt = r.ExpiresAt.Time
	}
	return std
}

func newStudentRow(std student.Student) studentRow {
	r := studentRow{
		ID:           std.ID,
		Name:         std.Name,
		Email:        std.Email,
		PasswordHash: std.PasswordHash,
		Balance:      std.Balance,
		Plan:         std.Plan,
		EnrolledAt:   std.EnrolledAt,
		CreatedAt:    std.CreatedAt,
		UpdatedAt:    std.UpdatedAt,
	}
	if !std.ExpiresAt.IsZero() {
		r.ExpiresAt = null.TimeFrom(std.ExpiresAt)
	}
	return r
}

type ledgerRow struct {
	ID            string    `db:"id"`
	StudentID     string    `db:"student_id"`
	Action        string    `db:"action"`
	Amount        int       `db:"amount"`
	BalanceBefore int       `db:"balance_before"`
	BalanceAfter  int       `db:"balance_after"`
	Reason        string    `db:"reason"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r ledgerRow) toCore() student.LedgerEntry {
	return student.LedgerEntry(r)
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM student WHERE email = $1)`, email)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return student.ErrEmailExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO student (id, name, email, password_hash, balance, plan, enrolled_at, expires_at, created_at, updated_at)
		VALUES (:id, :name, :email, :password_hash, :balance, :plan, :enrolled_at, :expires_at, :created_at, :updated_at)`,
		newStudentRow(std),
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "creating student")
	}
	return std, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM student WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "getting student by id")
	}
	return row.toCore(), nil
}

func (repo *studentRepository) GetStudentByEmail(ctx context.Context, email string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM student WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "getting student by email")
	}
	return row.toCore(), nil
}

// ApplyLedgerEntry updates the balance and appends the audit row in one
// transaction. The UPDATE is guarded by the expected balance-before so a
// concurrent balance change surfaces as core.ErrWriteConflict instead of a
// silently wrong audit trail.
func (repo *studentRepository) ApplyLedgerEntry(ctx context.Context, entry student.LedgerEntry) (student.Student, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE student SET balance = $1, updated_at = $2 WHERE id = $3 AND balance = $4`,
		entry.BalanceAfter, entry.CreatedAt, entry.StudentID, entry.BalanceBefore,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating balance")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		// either the student is gone or the balance moved under us
		var exists bool
		if err = tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM student WHERE id = $1)`, entry.StudentID); err != nil {
			return student.Student{}, errors.Wrap(err, "checking student")
		}
		if !exists {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, core.ErrWriteConflict
	}

	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO credit_ledger (id, student_id, action, amount, balance_before, balance_after, reason, created_at)
		VALUES (:id, :student_id, :action, :amount, :balance_before, :balance_after, :reason, :created_at)`,
		ledgerRow(entry),
	); err != nil {
		return student.Student{}, errors.Wrap(err, "appending ledger entry")
	}

	var row studentRow
	if err = tx.GetContext(ctx, &row, `SELECT * FROM student WHERE id = $1`, entry.StudentID); err != nil {
		return student.Student{}, errors.Wrap(err, "reloading student")
	}

	if err = tx.Commit(); err != nil {
		return student.Student{}, errors.Wrap(err, "committing transaction")
	}
	return row.toCore(), nil
}

func (repo *studentRepository) QueryLedgerEntries(ctx context.Context, studentID string) ([]student.LedgerEntry, error) {
	var rows []ledgerRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM credit_ledger WHERE student_id = $1 ORDER BY created_at DESC`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying ledger entries")
	}
	entries := make([]student.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toCore())
	}
	return entries, nil
}
