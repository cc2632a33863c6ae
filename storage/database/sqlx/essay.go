package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/essay"
)

// essayRow flattens the two correction slots into columns, per slot: five
// nullable competency scores, five nullable comments, a note and an audio
// reference.
type essayRow struct {
	ID         string `db:"id"`
	OwnerEmail string `db:"owner_email"`
	Theme      string `db:"theme"`
	Kind       string `db:"kind"`
	Body       string `db:"body"`
	Manuscript bool   `db:"manuscript"`
	Mode       string `db:"mode"`
	Status     string `db:"status"`

	Slot1Corrector null.String `db:"slot1_corrector"`
	Slot1Status    string      `db:"slot1_status"`
	Slot1Score1    null.Int    `db:"slot1_score_1"`
	Slot1Score2    null.Int    `db:"slot1_score_2"`
	Slot1Score3    null.Int    `db:"slot1_score_3"`
	Slot1Score4    null.Int    `db:"slot1_score_4"`
	Slot1Score5    null.Int    `db:"slot1_score_5"`
	Slot1Comment1  null.String `db:"slot1_comment_1"`
	Slot1Comment2  null.String `db:"slot1_comment_2"`
	Slot1Comment3  null.String `db:"slot1_comment_3"`
	Slot1Comment4  null.String `db:"slot1_comment_4"`
	Slot1Comment5  null.String `db:"slot1_comment_5"`
	Slot1Note      null.String `db:"slot1_note"`
	Slot1AudioRef  null.String `db:"slot1_audio_ref"`

	Slot2Corrector null.String `db:"slot2_corrector"`
	Slot2Status    string      `db:"slot2_status"`
	Slot2Score1    null.Int    `db:"slot2_score_1"`
	Slot2Score2    null.Int    `db:"slot2_score_2"`
	Slot2Score3    null.Int    `db:"slot2_score_3"`
	Slot2Score4    null.Int    `db:"slot2_score_4"`
	Slot2Score5    null.Int    `db:"slot2_score_5"`
	Slot2Comment1  null.String `db:"slot2_comment_1"`
	Slot2Comment2  null.String `db:"slot2_comment_2"`
	Slot2Comment3  null.String `db:"slot2_comment_3"`
	Slot2Comment4  null.String `db:"slot2_comment_4"`
	Slot2Comment5  null.String `db:"slot2_comment_5"`
	Slot2Note      null.String `db:"slot2_note"`
	Slot2AudioRef  null.String `db:"slot2_audio_ref"`

	FinalScore          null.Int    `db:"final_score"`
	ReturnJustification null.String `db:"return_justification"`
	ReturnedBy          null.String `db:"returned_by"`
	ReturnedAt          null.Time   `db:"returned_at"`
	ReturnSeenAt        null.Time   `db:"return_seen_at"`

	SubmittedAt time.Time `db:"submitted_at"`
	CorrectedAt null.Time `db:"corrected_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	Version     int       `db:"version"`
}

func newSlot(scores [essay.NumCompetencies]null.Int, comments [essay.NumCompetencies]null.String, corrector null.String, status string, note, audioRef null.String) essay.CorrectionSlot {
	return essay.CorrectionSlot{
		Corrector: corrector.String,
		Status:    essay.SlotStatus(status),
		Scores:    scores,
		Comments:  comments,
		Note:      note,
		AudioRef:  audioRef,
	}
}

func (r essayRow) toCore() essay.Essay {
	e := essay.Essay{
		ID:                  r.ID,
		OwnerEmail:          r.OwnerEmail,
		Theme:               r.Theme,
		Kind:                essay.Kind(r.Kind),
		Body:                r.Body,
		Manuscript:          r.Manuscript,
		Mode:                essay.CorrectionMode(r.Mode),
		Status:              essay.Status(r.Status),
		FinalScore:          r.FinalScore,
		ReturnJustification: r.ReturnJustification,
		ReturnedBy:          r.ReturnedBy,
		ReturnedAt:          r.ReturnedAt,
		ReturnSeenAt:        r.ReturnSeenAt,
		SubmittedAt:         r.SubmittedAt,
		CorrectedAt:         r.CorrectedAt,
		UpdatedAt:           r.UpdatedAt,
		Version:             r.Version,
	}
	e.Slots[0] = newSlot(
		[essay.NumCompetencies]null.Int{r.Slot1Score1, r.Slot1Score2, r.Slot1Score3, r.Slot1Score4, r.Slot1Score5},
		[essay.NumCompetencies]null.String{r.Slot1Comment1, r.Slot1Comment2, r.Slot1Comment3, r.Slot1Comment4, r.Slot1Comment5},
		r.Slot1Corrector, r.Slot1Status, r.Slot1Note, r.Slot1AudioRef,
	)
	e.Slots[1] = newSlot(
		[essay.NumCompetencies]null.Int{r.Slot2Score1, r.Slot2Score2, r.Slot2Score3, r.Slot2Score4, r.Slot2Score5},
		[essay.NumCompetencies]null.String{r.Slot2Comment1, r.Slot2Comment2, r.Slot2Comment3, r.Slot2Comment4, r.Slot2Comment5},
		r.Slot2Corrector, r.Slot2Status, r.Slot2Note, r.Slot2AudioRef,
	)
	return e
}

func newEssayRow(e essay.Essay) essayRow {
	s1, s2 := e.Slots[0], e.Slots[1]
	return essayRow{
		ID:         e.ID,
		OwnerEmail: e.OwnerEmail,
		Theme:      e.Theme,
		Kind:       string(e.Kind),
		Body:       e.Body,
		Manuscript: e.Manuscript,
		Mode:       string(e.Mode),
		Status:     string(e.Status),

		Slot1Corrector: nullableStr(s1.Corrector),
		Slot1Status:    string(s1.Status),
		Slot1Score1:    s1.Scores[0],
		Slot1Score2:    s1.Scores[1],
		Slot1Score3:    s1.Scores[2],
		Slot1Score4:    s1.Scores[3],
		Slot1Score5:    s1.Scores[4],
		Slot1Comment1:  s1.Comments[0],
		Slot1Comment2:  s1.Comments[1],
		Slot1Comment3:  s1.Comments[2],
		Slot1Comment4:  s1.Comments[3],
		Slot1Comment5:  s1.Comments[4],
		Slot1Note:      s1.Note,
		Slot1AudioRef:  s1.AudioRef,

		Slot2Corrector: nullableStr(s2.Corrector),
		Slot2Status:    string(s2.Status),
		Slot2Score1:    s2.Scores[0],
		Slot2Score2:    s2.Scores[1],
		Slot2Score3:    s2.Scores[2],
		Slot2Score4:    s2.Scores[3],
		Slot2Score5:    s2.Scores[4],
		Slot2Comment1:  s2.Comments[0],
		Slot2Comment2:  s2.Comments[1],
		Slot2Comment3:  s2.Comments[2],
		Slot2Comment4:  s2.Comments[3],
		Slot2Comment5:  s2.Comments[4],
		Slot2Note:      s2.Note,
		Slot2AudioRef:  s2.AudioRef,

		FinalScore:          e.FinalScore,
		ReturnJustification: e.ReturnJustification,
		ReturnedBy:          e.ReturnedBy,
		ReturnedAt:          e.ReturnedAt,
		ReturnSeenAt:        e.ReturnSeenAt,

		SubmittedAt: e.SubmittedAt,
		CorrectedAt: e.CorrectedAt,
		UpdatedAt:   e.UpdatedAt,
		Version:     e.Version,
	}
}

func nullableStr(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

var essayColumns = []string{
	"id", "owner_email", "theme", "kind", "body", "manuscript", "mode", "status",
	"slot1_corrector", "slot1_status",
	"slot1_score_1", "slot1_score_2", "slot1_score_3", "slot1_score_4", "slot1_score_5",
	"slot1_comment_1", "slot1_comment_2", "slot1_comment_3", "slot1_comment_4", "slot1_comment_5",
	"slot1_note", "slot1_audio_ref",
	"slot2_corrector", "slot2_status",
	"slot2_score_1", "slot2_score_2", "slot2_score_3", "slot2_score_4", "slot2_score_5",
	"slot2_comment_1", "slot2_comment_2", "slot2_comment_3", "slot2_comment_4", "slot2_comment_5",
	"slot2_note", "slot2_audio_ref",
	"final_score", "return_justification", "returned_by", "returned_at", "return_seen_at",
	"submitted_at", "corrected_at", "updated_at", "version",
}

func insertEssayQuery() string {
	cols, vals := "", ""
	for i, c := range essayColumns {
		if i > 0 {
			cols += ", "
			vals += ", "
		}
		cols += c
		vals += ":" + c
	}
	return fmt.Sprintf("INSERT INTO essay (%s) VALUES (%s)", cols, vals)
}

func updateEssayQuery() string {
	set := ""
	for _, c := range essayColumns {
		switch c {
		case "id", "version":
			continue
		}
		if set != "" {
			set += ", "
		}
		set += c + " = :" + c
	}
	return fmt.Sprintf("UPDATE essay SET %s, version = version + 1 WHERE id = :id AND version = :version", set)
}

type essayRepository struct {
	db *sqlx.DB
}

var _ essay.Repository = (*essayRepository)(nil)

func NewEssayRepository(db *sqlx.DB) essay.Repository {
	return &essayRepository{db: db}
}

func (repo *essayRepository) CreateEssay(ctx context.Context, e essay.Essay) (essay.Essay, error) {
	if _, err := repo.db.NamedExecContext(ctx, insertEssayQuery(), newEssayRow(e)); err != nil {
		return essay.Essay{}, errors.Wrap(err, "creating essay")
	}
	return e, nil
}

func (repo *essayRepository) GetEssay(ctx context.Context, id string) (essay.Essay, error) {
	var row essayRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM essay WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return essay.Essay{}, essay.ErrNotFound
		}
		return essay.Essay{}, errors.Wrap(err, "getting essay")
	}
	return row.toCore(), nil
}

func (repo *essayRepository) UpdateEssay(ctx context.Context, e essay.Essay) (essay.Essay, error) {
	res, err := repo.db.NamedExecContext(ctx, updateEssayQuery(), newEssayRow(e))
	if err != nil {
		return essay.Essay{}, errors.Wrap(err, "updating essay")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return essay.Essay{}, errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		var exists bool
		if err = repo.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM essay WHERE id = $1)`, e.ID); err != nil {
			return essay.Essay{}, errors.Wrap(err, "checking essay")
		}
		if !exists {
			return essay.Essay{}, essay.ErrNotFound
		}
		return essay.Essay{}, core.ErrWriteConflict
	}
	e.Version++
	return e, nil
}

// UpdateSlot writes a single slot's columns. It deliberately skips the
// version guard: the two slots are independent and two correctors writing
// concurrently must not block each other.
func (repo *essayRepository) UpdateSlot(ctx context.Context, essayID string, idx int, slot essay.CorrectionSlot) (essay.Essay, error) {
	prefix := fmt.Sprintf("slot%d_", idx+1)
	q := fmt.Sprintf(`
		UPDATE essay SET
			%[1]scorrector = $1, %[1]sstatus = $2,
			%[1]sscore_1 = $3, %[1]sscore_2 = $4, %[1]sscore_3 = $5, %[1]sscore_4 = $6, %[1]sscore_5 = $7,
			%[1]scomment_1 = $8, %[1]scomment_2 = $9, %[1]scomment_3 = $10, %[1]scomment_4 = $11, %[1]scomment_5 = $12,
			%[1]snote = $13, %[1]saudio_ref = $14,
			updated_at = $15
		WHERE id = $16`, prefix)

	res, err := repo.db.ExecContext(ctx, q,
		nullableStr(slot.Corrector), string(slot.Status),
		slot.Scores[0], slot.Scores[1], slot.Scores[2], slot.Scores[3], slot.Scores[4],
		slot.Comments[0], slot.Comments[1], slot.Comments[2], slot.Comments[3], slot.Comments[4],
		slot.Note, slot.AudioRef,
		time.Now().UTC(), essayID,
	)
	if err != nil {
		return essay.Essay{}, errors.Wrap(err, "updating correction slot")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return essay.Essay{}, errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		return essay.Essay{}, essay.ErrNotFound
	}
	return repo.GetEssay(ctx, essayID)
}

func (repo *essayRepository) DeleteEssay(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM essay WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting essay")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking affected rows")
	}
	if n == 0 {
		return essay.ErrNotFound
	}
	return nil
}

// orderableEssayFields whitelists the columns client-supplied orderings may
// reference; anything else is dropped before query building.
var orderableEssayFields = map[string]bool{
	"submitted_at": true,
	"corrected_at": true,
	"theme":        true,
	"status":       true,
	"kind":         true,
}

func essayOrderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if orderableEssayFields[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return "submitted_at DESC"
	}
	return strings.Join(clauses, ", ")
}

func (repo *essayRepository) QueryEssaysByOwner(ctx context.Context, ownerEmail string, ordering ...core.DBOrdering) ([]essay.Essay, error) {
	var rows []essayRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM essay WHERE owner_email = $1 ORDER BY `+essayOrderBy(ordering), ownerEmail)
	if err != nil {
		return nil, errors.Wrap(err, "querying essays")
	}
	essays := make([]essay.Essay, 0, len(rows))
	for _, r := range rows {
		essays = append(essays, r.toCore())
	}
	return essays, nil
}

type correctorRow struct {
	Email             string `db:"email"`
	Name              string `db:"name"`
	AcceptsTyped      bool   `db:"accepts_typed"`
	AcceptsManuscript bool   `db:"accepts_manuscript"`
}

func (repo *essayRepository) GetCorrector(ctx context.Context, email string) (essay.Corrector, error) {
	var row correctorRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM corrector WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return essay.Corrector{}, essay.ErrCorrectorNotFound
		}
		return essay.Corrector{}, errors.Wrap(err, "getting corrector")
	}
	return essay.Corrector(row), nil
}

func (repo *essayRepository) UpsertCorrector(ctx context.Context, c essay.Corrector) (essay.Corrector, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO corrector (email, name, accepts_typed, accepts_manuscript)
		VALUES (:email, :name, :accepts_typed, :accepts_manuscript)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, accepts_typed = EXCLUDED.accepts_typed, accepts_manuscript = EXCLUDED.accepts_manuscript`,
		correctorRow(c),
	)
	if err != nil {
		return essay.Corrector{}, errors.Wrap(err, "upserting corrector")
	}
	return c, nil
}
