package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/essay"
	"github.com/notamil/backend/core/student"
)

func TestStudentRepository_ApplyLedgerEntry(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewStudentRepository(db)

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	std, err := repo.CreateStudent(ctx, student.Student{ID: "s1", Email: "ana@test.br", Balance: 5})
	require.NoError(t, err)

	// stale BalanceBefore is rejected as a write conflict
	_, err = repo.ApplyLedgerEntry(ctx, student.LedgerEntry{
		ID: "l0", StudentID: std.ID, Action: student.ActionDebit,
		Amount: 1, BalanceBefore: 4, BalanceAfter: 3, CreatedAt: now,
	})
	assert.Equal(t, core.ErrWriteConflict, err)

	got, err := repo.ApplyLedgerEntry(ctx, student.LedgerEntry{
		ID: "l1", StudentID: std.ID, Action: student.ActionDebit,
		Amount: 2, BalanceBefore: 5, BalanceAfter: 3, CreatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Balance)

	// the audit row landed with the balance change
	entries, err := repo.QueryLedgerEntries(ctx, std.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "l1", entries[0].ID)

	// unknown student
	_, err = repo.ApplyLedgerEntry(ctx, student.LedgerEntry{ID: "l2", StudentID: "nope", CreatedAt: now})
	assert.Equal(t, student.ErrNotFound, err)
}

func TestStudentRepository_QueryLedgerEntries_newestFirst(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewStudentRepository(db)

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	std, err := repo.CreateStudent(ctx, student.Student{ID: "s1", Email: "ana@test.br"})
	require.NoError(t, err)

	for i, amount := range []int{3, 1} {
		_, err = repo.ApplyLedgerEntry(ctx, student.LedgerEntry{
			ID: string(rune('a' + i)), StudentID: std.ID, Action: student.ActionCredit,
			Amount: amount, BalanceBefore: std.Balance, BalanceAfter: std.Balance + amount,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		std.Balance += amount
	}

	entries, err := repo.QueryLedgerEntries(ctx, std.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
}

func TestEssayRepository_UpdateEssay_versionGuard(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewEssayRepository(db)

	e, err := repo.CreateEssay(ctx, essay.Essay{ID: "e1", OwnerEmail: "ana@test.br", Version: 1})
	require.NoError(t, err)

	updated, err := repo.UpdateEssay(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	// a writer holding the old version loses
	_, err = repo.UpdateEssay(ctx, e)
	assert.Equal(t, core.ErrWriteConflict, err)

	_, err = repo.UpdateEssay(ctx, essay.Essay{ID: "nope"})
	assert.Equal(t, essay.ErrNotFound, err)
}

func TestEssayRepository_UpdateSlot_independent(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewEssayRepository(db)

	e, err := repo.CreateEssay(ctx, essay.Essay{ID: "e1", OwnerEmail: "ana@test.br", Version: 1})
	require.NoError(t, err)

	slot1 := essay.CorrectionSlot{Corrector: "c1@test.br", Status: essay.SlotDone}
	slot1.Scores[0] = null.IntFrom(200)
	slot2 := essay.CorrectionSlot{Corrector: "c2@test.br", Status: essay.SlotDone}
	slot2.Scores[0] = null.IntFrom(100)

	// slot writes ignore the row version and never touch the other slot
	_, err = repo.UpdateSlot(ctx, e.ID, 0, slot1)
	require.NoError(t, err)
	got, err := repo.UpdateSlot(ctx, e.ID, 1, slot2)
	require.NoError(t, err)

	assert.Equal(t, 200, got.Slots[0].Scores[0].Int)
	assert.Equal(t, 100, got.Slots[1].Scores[0].Int)
	assert.Equal(t, 1, got.Version)
}

func TestEssayRepository_DeleteEssay(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewEssayRepository(db)

	e, err := repo.CreateEssay(ctx, essay.Essay{ID: "e1", OwnerEmail: "ana@test.br"})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteEssay(ctx, e.ID))
	_, err = repo.GetEssay(ctx, e.ID)
	assert.Equal(t, essay.ErrNotFound, err)
	assert.Equal(t, essay.ErrNotFound, repo.DeleteEssay(ctx, e.ID))
}

func TestEssayRepository_Correctors(t *testing.T) {
	ctx := context.Background()
	db, err := Open()
	require.NoError(t, err)
	repo := NewEssayRepository(db)

	_, err = repo.GetCorrector(ctx, "c@test.br")
	assert.Equal(t, essay.ErrCorrectorNotFound, err)

	c, err := repo.UpsertCorrector(ctx, essay.Corrector{Email: "c@test.br", Name: "C", AcceptsTyped: true})
	require.NoError(t, err)

	// upsert overwrites capabilities
	c.AcceptsManuscript = true
	_, err = repo.UpsertCorrector(ctx, c)
	require.NoError(t, err)

	got, err := repo.GetCorrector(ctx, "c@test.br")
	require.NoError(t, err)
	assert.True(t, got.AcceptsManuscript)
}
