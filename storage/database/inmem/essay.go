package inmemdb

import (
	"context"
	"sort"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/essay"
)

type essayRepository struct {
	db *DB
}

var _ essay.Repository = (*essayRepository)(nil)

func NewEssayRepository(db *DB) essay.Repository {
	return &essayRepository{db: db}
}

func (repo *essayRepository) CreateEssay(ctx context.Context, e essay.Essay) (essay.Essay, error) {
	repo.db.essay.Lock()
	defer repo.db.essay.Unlock()

	repo.db.essay.table[e.ID] = &e
	return e, nil
}

func (repo *essayRepository) GetEssay(ctx context.Context, id string) (essay.Essay, error) {
	repo.db.essay.RLock()
	defer repo.db.essay.RUnlock()

	if e, ok := repo.db.essay.table[id]; ok {
		return *e, nil
	}
	return essay.Essay{}, essay.ErrNotFound
}

func (repo *essayRepository) UpdateEssay(ctx context.Context, e essay.Essay) (essay.Essay, error) {
	repo.db.essay.Lock()
	defer repo.db.essay.Unlock()

	orig, ok := repo.db.essay.table[e.ID]
	if !ok {
		return essay.Essay{}, essay.ErrNotFound
	}
	if orig.Version != e.Version {
		return essay.Essay{}, core.ErrWriteConflict
	}
	e.Version++
	repo.db.essay.table[e.ID] = &e
	return e, nil
}

func (repo *essayRepository) UpdateSlot(ctx context.Context, essayID string, idx int, slot essay.CorrectionSlot) (essay.Essay, error) {
	repo.db.essay.Lock()
	defer repo.db.essay.Unlock()

	e, ok := repo.db.essay.table[essayID]
	if !ok {
		return essay.Essay{}, essay.ErrNotFound
	}
	e.Slots[idx] = slot
	return *e, nil
}

func (repo *essayRepository) DeleteEssay(ctx context.Context, id string) error {
	repo.db.essay.Lock()
	defer repo.db.essay.Unlock()

	if _, ok := repo.db.essay.table[id]; !ok {
		return essay.ErrNotFound
	}
	delete(repo.db.essay.table, id)
	return nil
}

func (repo *essayRepository) QueryEssaysByOwner(ctx context.Context, ownerEmail string, ordering ...core.DBOrdering) ([]essay.Essay, error) {
	repo.db.essay.RLock()
	defer repo.db.essay.RUnlock()

	essays := make([]essay.Essay, 0)
	for _, e := range repo.db.essay.table {
		if e.OwnerEmail == ownerEmail {
			essays = append(essays, *e)
		}
	}
	// only submitted_at ordering is supported in memory
	ascending := false
	for _, ord := range ordering {
		if ord.Field == "submitted_at" {
			ascending = ord.Ascending
		}
	}
	sort.Slice(essays, func(i, j int) bool {
		if ascending {
			return essays[i].SubmittedAt.Before(essays[j].SubmittedAt)
		}
		return essays[i].SubmittedAt.After(essays[j].SubmittedAt)
	})
	return essays, nil
}

func (repo *essayRepository) GetCorrector(ctx context.Context, email string) (essay.Corrector, error) {
	repo.db.corrector.RLock()
	defer repo.db.corrector.RUnlock()

	if c, ok := repo.db.corrector.table[email]; ok {
		return *c, nil
	}
	return essay.Corrector{}, essay.ErrCorrectorNotFound
}

func (repo *essayRepository) UpsertCorrector(ctx context.Context, c essay.Corrector) (essay.Corrector, error) {
	repo.db.corrector.Lock()
	defer repo.db.corrector.Unlock()

	repo.db.corrector.table[c.Email] = &c
	return c, nil
}
