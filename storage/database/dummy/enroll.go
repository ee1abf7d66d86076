package dummydb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/enroll"
)

type enrollRepository struct {
	purchases *purchaseTable
	progress  *progressTable
}

var _ enroll.Repository = (*enrollRepository)(nil) // interface compliance check

func NewEnrollRepository(db *DB) *enrollRepository {
	return &enrollRepository{purchases: db.purchase, progress: db.progress}
}

func (repo *enrollRepository) AddPurchase(_ context.Context, studentID int, courseID string) error {
	repo.purchases.Lock()
	defer repo.purchases.Unlock()

	key := purchaseKey{studentID: studentID, courseID: courseID}
	if _, ok := repo.purchases.table[key]; ok {
		return nil // already owned
	}
	repo.purchases.seq++
	repo.purchases.table[key] = repo.purchases.seq
	return nil
}

func (repo *enrollRepository) PurchaseExists(_ context.Context, studentID int, courseID string) (bool, error) {
	repo.purchases.RLock()
	defer repo.purchases.RUnlock()

	_, ok := repo.purchases.table[purchaseKey{studentID: studentID, courseID: courseID}]
	return ok, nil
}

func (repo *enrollRepository) QueryPurchasedCourseIDs(_ context.Context, studentID int) ([]string, error) {
	repo.purchases.RLock()
	defer repo.purchases.RUnlock()

	type entry struct {
		courseID string
		seq      int
	}
	var entries []entry
	for key, seq := range repo.purchases.table {
		if key.studentID == studentID {
			entries = append(entries, entry{courseID: key.courseID, seq: seq})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.courseID)
	}
	return ids, nil
}

func (repo *enrollRepository) CountPurchases(_ context.Context, courseID string) (int, error) {
	repo.purchases.RLock()
	defer repo.purchases.RUnlock()

	n := 0
	for key := range repo.purchases.table {
		if key.courseID == courseID {
			n++
		}
	}
	return n, nil
}

func (repo *enrollRepository) UpsertProgress(_ context.Context, studentID int, courseID, sectionID string) error {
	repo.progress.Lock()
	defer repo.progress.Unlock()

	key := purchaseKey{studentID: studentID, courseID: courseID}
	pr, ok := repo.progress.table[key]
	if !ok {
		pr = &enroll.ProgressRecord{CourseID: courseID, CompletedSections: []string{}}
		repo.progress.table[key] = pr
	}

	completed := false
	for _, id := range pr.CompletedSections {
		if id == sectionID {
			completed = true
			break
		}
	}
	if !completed {
		pr.CompletedSections = append(pr.CompletedSections, sectionID)
	}
	pr.LastSectionID = sectionID
	return nil
}

func (repo *enrollRepository) GetProgress(_ context.Context, studentID int, courseID string) (enroll.ProgressRecord, error) {
	repo.progress.RLock()
	defer repo.progress.RUnlock()

	pr, ok := repo.progress.table[purchaseKey{studentID: studentID, courseID: courseID}]
	if !ok {
		return enroll.ProgressRecord{}, enroll.ErrNoProgress
	}
	out := *pr
	out.CompletedSections = append([]string(nil), pr.CompletedSections...)
	return out, nil
}
