package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/repository/memory"
	"github.com/noah-isme/academic-engine/internal/store"
)

const period = "2024-1"

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (r *recordingInvalidator) InvalidateAsync(_ context.Context, pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patterns)
}

type fixture struct {
	store       *memory.Store
	coordinator *Coordinator
	invalidator *recordingInvalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New(memory.WithClock(func() time.Time { return fixedNow }))
	seedCatalog(st)

	inv := &recordingInvalidator{}
	coord := NewCoordinator(st, nil, CoordinatorConfig{
		PassingGrade:         3.0,
		GraduationMinAverage: 3.0,
		DefaultCapacity:      30,
		TxTimeout:            time.Second,
		MaxRetries:           2,
		RetryDelay:           time.Millisecond,
	}, nil, NewMetricsService(), inv, nil)
	coord.now = func() time.Time { return fixedNow }
	return &fixture{store: st, coordinator: coord, invalidator: inv}
}

// seedCatalog loads program p1 (MAT100 + BD101 required) and student s1 with
// MAT100 passed at 3.2.
func seedCatalog(st *memory.Store) {
	st.PutCourse(models.Course{ID: "mat100", Code: "MAT100", Name: "Calculus", Credits: 3})
	st.PutCourse(models.Course{ID: "bd101", Code: "BD101", Name: "Databases", Credits: 4})
	st.PutCourse(models.Course{ID: "adv201", Code: "ADV201", Name: "Advanced Databases", Credits: 3, Prerequisites: []string{"bd101"}})
	st.PutProgram(models.Program{ID: "p1", Name: "Systems Engineering", RequiredCourses: []string{"mat100", "bd101"}})
	st.PutOffering(models.CourseOffering{CourseID: "bd101", Period: period, Capacity: 1})

	st.PutStudent(models.Student{
		ID:                "s1",
		Code:              "A001",
		Name:              "Ana Ruiz",
		Email:             "ana.ruiz@uni.edu",
		ProgramID:         "p1",
		Semester:          3,
		CumulativeAverage: 3.2,
		Status:            models.StudentStatusActive,
		CreditsEarned:     3,
		CompletedCourses: models.CompletedCourses{
			{CourseID: "mat100", EnrollmentID: "e-mat", Period: "2023-2", FinalGrade: 3.2, Credits: 3},
		},
	})
	st.PutStudent(models.Student{
		ID:        "s2",
		Code:      "A002",
		Name:      "Bruno Diaz",
		Email:     "bruno.diaz@uni.edu",
		ProgramID: "p1",
		Semester:  1,
		Status:    models.StudentStatusActive,
	})
}

func (f *fixture) student(t *testing.T, id string) *models.Student {
	t.Helper()
	var out *models.Student
	require.NoError(t, f.store.View(context.Background(), func(r store.Reader) error {
		s, err := r.GetStudent(context.Background(), id)
		out = s
		return err
	}))
	return out
}

func (f *fixture) enrollments(t *testing.T, q store.EnrollmentQuery) []models.Enrollment {
	t.Helper()
	var out []models.Enrollment
	require.NoError(t, f.store.View(context.Background(), func(r store.Reader) error {
		list, err := r.ListEnrollments(context.Background(), q)
		out = list
		return err
	}))
	return out
}

func (f *fixture) history(t *testing.T, studentID string) []models.GradeHistoryRecord {
	t.Helper()
	var out []models.GradeHistoryRecord
	require.NoError(t, f.store.View(context.Background(), func(r store.Reader) error {
		list, err := r.ListGradeHistory(context.Background(), studentID)
		out = list
		return err
	}))
	return out
}

func grade(v float64) *float64 { return &v }

func enrollS2InMath() dto.EnrollRequest {
	return dto.EnrollRequest{StudentID: "s2", CourseIDs: []string{"mat100"}, Period: period}
}
