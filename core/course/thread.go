package course

import (
	"context"
	"time"
)

type (
	// Message is one entry in a course's discussion thread. Append-only.
	Message struct {
		ID         int       `json:"id"`
		CourseID   string    `json:"course_id"`
		AuthorName string    `json:"author_name"`
		Body       string    `json:"body"`
		PostedAt   time.Time `json:"posted_at"` // UTC
	}

	// Thread is the per-course discussion, created lazily on first post.
	Thread struct {
		CourseID string    `json:"course_id"`
		Messages []Message `json:"messages"`
	}

	ThreadRepository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// GetMessages returns the thread in posting order; empty when no one
		// has posted yet.
		GetMessages(ctx context.Context, courseID string) ([]Message, error)
	}
)
