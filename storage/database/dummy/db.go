// Package dummydb is an in-memory database used by tests and local tooling.
// It honors the same contracts as the SQL-backed repositories, locking
// included, so service and API tests can run without a server.
package dummydb

import (
	"sync"

	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/enroll"
	"github.com/darasahq/darasa/core/user"
)

type (
	DB struct {
		user     *userTable
		otp      *otpTable
		course   *courseTable
		purchase *purchaseTable
		progress *progressTable
		thread   *threadTable
	}

	userTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*user.User
	}

	otpTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*user.OneTimeCode
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	purchaseKey struct {
		studentID int
		courseID  string
	}

	purchaseTable struct {
		sync.RWMutex
		seq   int
		table map[purchaseKey]int // insertion order
	}

	progressTable struct {
		sync.RWMutex
		table map[purchaseKey]*enroll.ProgressRecord
	}

	threadTable struct {
		sync.RWMutex
		pkCount int
		table   map[string][]course.Message // by course id, posting order
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:     &userTable{table: make(map[int]*user.User)},
		otp:      &otpTable{table: make(map[int]*user.OneTimeCode)},
		course:   &courseTable{table: make(map[string]*course.Course)},
		purchase: &purchaseTable{table: make(map[purchaseKey]int)},
		progress: &progressTable{table: make(map[purchaseKey]*enroll.ProgressRecord)},
		thread:   &threadTable{table: make(map[string][]course.Message)},
	}
	return db, nil
}
