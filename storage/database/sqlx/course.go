package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/course"
)

type (
	courseRow struct {
		ID              string         `db:"id"`
		Title           string         `db:"title"`
		Price           float64        `db:"price"`
		Description     string         `db:"description"`
		ImageURL        string         `db:"image_url"`
		Requirements    pq.StringArray `db:"requirements"`
		InstructorEmail string         `db:"instructor_email"`
		CreatedAt       time.Time      `db:"created_at"`
	}

	sectionRow struct {
		ID          string `db:"id"`
		CourseID    string `db:"course_id"`
		Title       string `db:"title"`
		Description string `db:"description"`
		VideoURL    string `db:"video_url"`
		Position    int    `db:"position"`
	}
)

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:              r.ID,
		Title:           r.Title,
		Price:           r.Price,
		Description:     r.Description,
		ImageURL:        r.ImageURL,
		Requirements:    r.Requirements,
		InstructorEmail: r.InstructorEmail,
		CreatedAt:       r.CreatedAt,
	}
}

func (r sectionRow) toSection() course.Section {
	return course.Section{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		VideoURL:    r.VideoURL,
		Position:    r.Position,
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO course (id, title, price, description, image_url, requirements, instructor_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(
		ctx, q,
		crs.ID, crs.Title, crs.Price, crs.Description, crs.ImageURL,
		pq.StringArray(crs.Requirements), crs.InstructorEmail, crs.CreatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}

	const sq = `
		INSERT INTO section (id, course_id, title, description, video_url, position)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, sec := range crs.Sections {
		if _, err = tx.ExecContext(ctx, sq, sec.ID, crs.ID, sec.Title, sec.Description, sec.VideoURL, sec.Position); err != nil {
			return course.Course{}, errors.Wrap(err, "inserting section")
		}
	}

	if err = tx.Commit(); err != nil {
		return course.Course{}, errors.Wrap(err, "committing transaction")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "querying course")
	}

	sections, err := repo.loadSections(ctx, id)
	if err != nil {
		return course.Course{}, err
	}
	crs := row.toCourse()
	crs.Sections = sections[id]
	if crs.Sections == nil {
		crs.Sections = []course.Section{}
	}
	return crs, nil
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	return repo.queryCourses(ctx, `SELECT * FROM course ORDER BY created_at`)
}

func (repo *courseRepository) FilterCoursesByInstructor(ctx context.Context, email string) ([]course.Course, error) {
	return repo.queryCourses(ctx, `SELECT * FROM course WHERE instructor_email = $1 ORDER BY created_at`, email)
}

func (repo *courseRepository) queryCourses(ctx context.Context, query string, args ...interface{}) ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	sections, err := repo.loadSections(ctx, ids...)
	if err != nil {
		return nil, err
	}

	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		crs := row.toCourse()
		crs.Sections = sections[row.ID]
		if crs.Sections == nil {
			crs.Sections = []course.Section{}
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

// loadSections fetches the sections of all given courses in one query,
// grouped by course id and ordered by position.
func (repo *courseRepository) loadSections(ctx context.Context, courseIDs ...string) (map[string][]course.Section, error) {
	out := make(map[string][]course.Section, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}

	var rows []sectionRow
	const q = `SELECT * FROM section WHERE course_id = ANY($1) ORDER BY course_id, position`
	if err := repo.db.SelectContext(ctx, &rows, q, pq.StringArray(courseIDs)); err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	for _, row := range rows {
		out[row.CourseID] = append(out[row.CourseID], row.toSection())
	}
	return out, nil
}
