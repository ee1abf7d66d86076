package enroll

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
)

var (
	// errors
	ErrNotPurchased         = errors.New("course not purchased")
	ErrNoProgress           = errors.New("no progress recorded")
	ErrCertificateNotEarned = errors.New("course not completed yet")
)

type (
	Repository interface {
		// AddPurchase is idempotent: purchasing an already-owned course is a no-op.
		AddPurchase(ctx context.Context, studentID int, courseID string) error
		PurchaseExists(ctx context.Context, studentID int, courseID string) (bool, error)
		QueryPurchasedCourseIDs(ctx context.Context, studentID int) ([]string, error)
		CountPurchases(ctx context.Context, courseID string) (int, error)

		// UpsertProgress must be a single atomic conditional update (add
		// sectionID to the completed set unless present, always overwrite the
		// last-section marker) so concurrent calls cannot lose updates.
		UpsertProgress(ctx context.Context, studentID int, courseID, sectionID string) error
		GetProgress(ctx context.Context, studentID int, courseID string) (ProgressRecord, error)
	}

	Service struct {
		repo       Repository
		courseRepo course.Repository
	}
)

func NewService(repo Repository, courseRepo course.Repository) *Service {
	return &Service{repo: repo, courseRepo: courseRepo}
}

// Purchase grants the entitlement unconditionally for an authenticated
// student; no payment state is modeled.
func (svc *Service) Purchase(ctx context.Context, studentID int, courseID string) error {
	if _, err := svc.courseRepo.GetCourseByID(ctx, courseID); err != nil {
		return err
	}
	return svc.repo.AddPurchase(ctx, studentID, courseID)
}

func (svc *Service) IsPurchased(ctx context.Context, studentID int, courseID string) (bool, error) {
	return svc.repo.PurchaseExists(ctx, studentID, courseID)
}

// ListPurchasedWithProgress returns every purchased course with its derived
// completion percentage, 0 when nothing has been recorded yet.
func (svc *Service) ListPurchasedWithProgress(ctx context.Context, studentID int) ([]CourseProgress, error) {
	ids, err := svc.repo.QueryPurchasedCourseIDs(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying purchased courses")
	}

	out := make([]CourseProgress, 0, len(ids))
	for _, id := range ids {
		crs, err := svc.courseRepo.GetCourseByID(ctx, id)
		if err != nil {
			if errors.Cause(err) == course.ErrNotFound {
				continue // course was removed; entitlement row outlives it
			}
			return nil, errors.Wrap(err, "querying course")
		}
		pct := 0
		pr, err := svc.repo.GetProgress(ctx, studentID, id)
		switch errors.Cause(err) {
		case nil:
			pct = completionPercentage(crs, pr)
		case ErrNoProgress:
		default:
			return nil, errors.Wrap(err, "querying progress")
		}
		out = append(out, CourseProgress{Course: crs, CompletionPercentage: pct})
	}
	return out, nil
}

// RecordProgress upserts the progress record for the (student, course) pair.
// The student must own the course and the section must belong to it.
// Re-completing a section only moves the last-section marker.
func (svc *Service) RecordProgress(ctx context.Context, studentID int, courseID, sectionID string) error {
	purchased, err := svc.repo.PurchaseExists(ctx, studentID, courseID)
	if err != nil {
		return errors.Wrap(err, "checking entitlement")
	}
	if !purchased {
		return ErrNotPurchased
	}

	crs, err := svc.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return err
	}
	if !crs.HasSection(sectionID) {
		return core.NewValidationError(nil, core.FieldError{Field: "section_id", Error: "unknown section for this course"})
	}

	return svc.repo.UpsertProgress(ctx, studentID, courseID, sectionID)
}

// GetProgress is a pure lookup; a student who has never progressed in the
// course gets an empty record, not an error.
func (svc *Service) GetProgress(ctx context.Context, studentID int, courseID string) (ProgressRecord, error) {
	pr, err := svc.repo.GetProgress(ctx, studentID, courseID)
	if err != nil {
		if errors.Cause(err) == ErrNoProgress {
			return ProgressRecord{CourseID: courseID, CompletedSections: []string{}}, nil
		}
		return ProgressRecord{}, errors.Wrap(err, "querying progress")
	}
	return pr, nil
}

// Certificate issues a completion certificate, refused below 100%.
func (svc *Service) Certificate(ctx context.Context, studentID int, studentName, courseID string) (Certificate, error) {
	purchased, err := svc.repo.PurchaseExists(ctx, studentID, courseID)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "checking entitlement")
	}
	if !purchased {
		return Certificate{}, ErrNotPurchased
	}

	crs, err := svc.courseRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Certificate{}, err
	}
	pr, err := svc.GetProgress(ctx, studentID, courseID)
	if err != nil {
		return Certificate{}, err
	}
	if completionPercentage(crs, pr) < 100 {
		return Certificate{}, ErrCertificateNotEarned
	}

	return Certificate{
		StudentName:     studentName,
		CourseTitle:     crs.Title,
		InstructorEmail: crs.InstructorEmail,
		IssuedAt:        time.Now().UTC(),
	}, nil
}

// InstructorEarnings summarizes purchases of the instructor's courses.
func (svc *Service) InstructorEarnings(ctx context.Context, instructorEmail string) ([]CourseEarnings, error) {
	courses, err := svc.courseRepo.FilterCoursesByInstructor(ctx, instructorEmail)
	if err != nil {
		return nil, errors.Wrap(err, "querying instructor courses")
	}

	out := make([]CourseEarnings, 0, len(courses))
	for _, crs := range courses {
		n, err := svc.repo.CountPurchases(ctx, crs.ID)
		if err != nil {
			return nil, errors.Wrap(err, "counting purchases")
		}
		out = append(out, CourseEarnings{
			Course:    crs,
			Purchases: n,
			Earnings:  float64(n) * crs.Price,
		})
	}
	return out, nil
}
