package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/enroll"
)

type enrollRepository struct {
	db *sqlx.DB
}

var _ enroll.Repository = (*enrollRepository)(nil) // interface compliance check

func NewEnrollRepository(db *sqlx.DB) *enrollRepository {
	return &enrollRepository{db: db}
}

func (repo *enrollRepository) AddPurchase(ctx context.Context, studentID int, courseID string) error {
	const q = `
		INSERT INTO purchase (student_id, course_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, course_id) DO NOTHING`

	if _, err := repo.db.ExecContext(ctx, q, studentID, courseID, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "inserting purchase")
	}
	return nil
}

func (repo *enrollRepository) PurchaseExists(ctx context.Context, studentID int, courseID string) (bool, error) {
	var exists bool
	const q = `SELECT EXISTS (SELECT 1 FROM purchase WHERE student_id = $1 AND course_id = $2)`
	if err := repo.db.GetContext(ctx, &exists, q, studentID, courseID); err != nil {
		return false, errors.Wrap(err, "querying purchase")
	}
	return exists, nil
}

func (repo *enrollRepository) QueryPurchasedCourseIDs(ctx context.Context, studentID int) ([]string, error) {
	var ids []string
	const q = `SELECT course_id FROM purchase WHERE student_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &ids, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying purchases")
	}
	return ids, nil
}

func (repo *enrollRepository) CountPurchases(ctx context.Context, courseID string) (int, error) {
	var n int
	const q = `SELECT COUNT(*) FROM purchase WHERE course_id = $1`
	if err := repo.db.GetContext(ctx, &n, q, courseID); err != nil {
		return 0, errors.Wrap(err, "counting purchases")
	}
	return n, nil
}

// UpsertProgress adds sectionID to the completed set and moves the
// last-section marker in one statement, so concurrent updates for the same
// (student, course) pair serialize on the row instead of racing a
// read-modify-write cycle.
func (repo *enrollRepository) UpsertProgress(ctx context.Context, studentID int, courseID, sectionID string) error {
	const q = `
		INSERT INTO progress (student_id, course_id, completed_sections, last_section_id)
		VALUES ($1, $2, ARRAY[$3::text], $3)
		ON CONFLICT (student_id, course_id) DO UPDATE
		SET completed_sections = CASE
				WHEN $3 = ANY (progress.completed_sections) THEN progress.completed_sections
				ELSE array_append(progress.completed_sections, $3)
			END,
		    last_section_id    = $3`

	if _, err := repo.db.ExecContext(ctx, q, studentID, courseID, sectionID); err != nil {
		return errors.Wrap(err, "upserting progress")
	}
	return nil
}

func (repo *enrollRepository) GetProgress(ctx context.Context, studentID int, courseID string) (enroll.ProgressRecord, error) {
	var row struct {
		CourseID          string         `db:"course_id"`
		CompletedSections pq.StringArray `db:"completed_sections"`
		LastSectionID     string         `db:"last_section_id"`
	}

	const q = `SELECT course_id, completed_sections, last_section_id FROM progress WHERE student_id = $1 AND course_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, studentID, courseID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return enroll.ProgressRecord{}, enroll.ErrNoProgress
		}
		return enroll.ProgressRecord{}, errors.Wrap(err, "querying progress")
	}
	return enroll.ProgressRecord{
		CourseID:          row.CourseID,
		CompletedSections: row.CompletedSections,
		LastSectionID:     row.LastSectionID,
	}, nil
}
