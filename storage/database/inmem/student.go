package inmemdb

import (
	"context"
	"sort"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()

	for _, std := range repo.db.student.table {
		if std.Email == email {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	repo.db.student.Lock()
	defer repo.db.student.Unlock()

	for _, s := range repo.db.student.table {
		if s.Email == std.Email {
			return student.Student{}, student.ErrEmailExists
		}
	}
	repo.db.student.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()

	if std, ok := repo.db.student.table[id]; ok {
		return *std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByEmail(ctx context.Context, email string) (student.Student, error) {
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()

	for _, std := range repo.db.student.table {
		if std.Email == email {
			return *std, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) ApplyLedgerEntry(ctx context.Context, entry student.LedgerEntry) (student.Student, error) {
	repo.db.student.Lock()
	defer repo.db.student.Unlock()
	repo.db.ledger.Lock()
	defer repo.db.ledger.Unlock()

	std, ok := repo.db.student.table[entry.StudentID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	if std.Balance != entry.BalanceBefore {
		return student.Student{}, core.ErrWriteConflict
	}

	// balance update and audit row land together or not at all
	std.Balance = entry.BalanceAfter
	std.UpdatedAt = entry.CreatedAt
	repo.db.ledger.table = append(repo.db.ledger.table, entry)
	return *std, nil
}

func (repo *studentRepository) QueryLedgerEntries(ctx context.Context, studentID string) ([]student.LedgerEntry, error) {
	repo.db.ledger.RLock()
	defer repo.db.ledger.RUnlock()

	entries := make([]student.LedgerEntry, 0)
	for _, e := range repo.db.ledger.table {
		if e.StudentID == studentID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}
