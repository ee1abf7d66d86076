package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/course"
)

type threadRepository struct {
	db *sqlx.DB
}

var _ course.ThreadRepository = (*threadRepository)(nil) // interface compliance check

func NewThreadRepository(db *sqlx.DB) *threadRepository {
	return &threadRepository{db: db}
}

func (repo *threadRepository) CreateMessage(ctx context.Context, msg course.Message) (course.Message, error) {
	const q = `
		INSERT INTO thread_message (course_id, author_name, body, posted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := repo.db.QueryRowxContext(ctx, q, msg.CourseID, msg.AuthorName, msg.Body, msg.PostedAt).Scan(&msg.ID)
	if err != nil {
		return course.Message{}, errors.Wrap(err, "inserting thread message")
	}
	return msg, nil
}

func (repo *threadRepository) GetMessages(ctx context.Context, courseID string) ([]course.Message, error) {
	type messageRow struct {
		ID         int       `db:"id"`
		CourseID   string    `db:"course_id"`
		AuthorName string    `db:"author_name"`
		Body       string    `db:"body"`
		PostedAt   time.Time `db:"posted_at"`
	}

	var rows []messageRow
	const q = `SELECT * FROM thread_message WHERE course_id = $1 ORDER BY posted_at, id`
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying thread messages")
	}

	msgs := make([]course.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, course.Message{
			ID:         row.ID,
			CourseID:   row.CourseID,
			AuthorName: row.AuthorName,
			Body:       row.Body,
			PostedAt:   row.PostedAt,
		})
	}
	return msgs, nil
}
