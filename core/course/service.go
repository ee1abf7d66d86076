package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var ErrNotFound = errors.New("course not found")

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		// GetCourseByID returns the course with its sections in order.
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)
		FilterCoursesByInstructor(ctx context.Context, email string) ([]Course, error)
	}

	Service struct {
		repo       Repository
		threadRepo ThreadRepository
	}
)

func NewService(repo Repository, threadRepo ThreadRepository) *Service {
	return &Service{repo: repo, threadRepo: threadRepo}
}

// Create builds a Course owned by instructorEmail. Course and section ids are
// generated here; section order follows the submitted sequence.
func (svc *Service) Create(ctx context.Context, instructorEmail string, nc NewCourse) (Course, error) {
	crs := Course{
		ID:              uuid.NewString(),
		Title:           nc.Title,
		Price:           nc.Price,
		Description:     nc.Description,
		ImageURL:        nc.ImageURL,
		Requirements:    nc.Requirements,
		InstructorEmail: instructorEmail,
		CreatedAt:       time.Now().UTC(),
	}
	crs.Sections = make([]Section, 0, len(nc.Sections))
	for i, ns := range nc.Sections {
		crs.Sections = append(crs.Sections, Section{
			ID:          uuid.NewString(),
			Title:       core.CleanString(ns.Title),
			Description: core.CleanString(ns.Description),
			VideoURL:    ns.VideoURL,
			Position:    i + 1,
		})
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryAllCourses(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) FilterByInstructor(ctx context.Context, email string) ([]Course, error) {
	return svc.repo.FilterCoursesByInstructor(ctx, core.CleanString(email, true /* lower */))
}

// PostMessage appends to the course's discussion thread, creating it lazily.
func (svc *Service) PostMessage(ctx context.Context, courseID, authorName, body string) (Message, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Message{}, err
	}
	msg := Message{
		CourseID:   courseID,
		AuthorName: authorName,
		Body:       core.CleanString(body),
		PostedAt:   time.Now().UTC(),
	}
	return svc.threadRepo.CreateMessage(ctx, msg)
}

func (svc *Service) GetThread(ctx context.Context, courseID string) (Thread, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Thread{}, err
	}
	msgs, err := svc.threadRepo.GetMessages(ctx, courseID)
	if err != nil {
		return Thread{}, errors.Wrap(err, "querying thread messages")
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return Thread{CourseID: courseID, Messages: msgs}, nil
}
