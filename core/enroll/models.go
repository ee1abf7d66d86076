package enroll

import (
	"math"
	"time"

	"github.com/darasahq/darasa/core/course"
)

type (
	// ProgressRecord tracks per-course, per-section completion for a student.
	// CompletedSections has set semantics; LastSectionID is the most recently
	// visited section whether or not it is completed.
	ProgressRecord struct {
		CourseID          string   `json:"course_id"`
		CompletedSections []string `json:"completed_sections"`
		LastSectionID     string   `json:"last_section_id"`
	}

	// CourseProgress pairs a purchased course with its derived completion.
	// "Completed" is a view (CompletionPercentage == 100), never stored.
	CourseProgress struct {
		Course               course.Course `json:"course"`
		CompletionPercentage int           `json:"completion_percentage"`
	}

	// Certificate attests that a student completed every section of a course.
	Certificate struct {
		StudentName     string    `json:"student_name"`
		CourseTitle     string    `json:"course_title"`
		InstructorEmail string    `json:"instructor_email"`
		IssuedAt        time.Time `json:"issued_at"` // UTC
	}

	// CourseEarnings is one row of an instructor's earnings summary.
	CourseEarnings struct {
		Course    course.Course `json:"course"`
		Purchases int           `json:"purchases"`
		Earnings  float64       `json:"earnings"`
	}
)

func (pr ProgressRecord) completedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(pr.CompletedSections))
	for _, id := range pr.CompletedSections {
		set[id] = struct{}{}
	}
	return set
}

// completionPercentage derives the progress view for a course. Sections no
// longer on the course do not count; zero-section courses report 0.
func completionPercentage(crs course.Course, pr ProgressRecord) int {
	total := len(crs.Sections)
	if total == 0 {
		return 0
	}
	done := 0
	set := pr.completedSet()
	for _, sec := range crs.Sections {
		if _, ok := set[sec.ID]; ok {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
