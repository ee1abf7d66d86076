package dummydb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryAllCourses(_ context.Context) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *courseRepository) FilterCoursesByInstructor(_ context.Context, email string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var filtered []course.Course
	for _, crs := range repo.query() {
		if crs.InstructorEmail == email {
			filtered = append(filtered, crs)
		}
	}
	return filtered, nil
}

type threadRepository struct {
	db *threadTable
}

var _ course.ThreadRepository = (*threadRepository)(nil) // interface compliance check

func NewThreadRepository(db *DB) *threadRepository {
	return &threadRepository{db: db.thread}
}

func (repo *threadRepository) CreateMessage(_ context.Context, msg course.Message) (course.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pkCount++
	msg.ID = repo.db.pkCount
	repo.db.table[msg.CourseID] = append(repo.db.table[msg.CourseID], msg)
	return msg, nil
}

func (repo *threadRepository) GetMessages(_ context.Context, courseID string) ([]course.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := repo.db.table[courseID]
	out := make([]course.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
