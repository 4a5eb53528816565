package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
)

type recordingNotifier struct {
	entities []string
}

func (n *recordingNotifier) Publish(_ context.Context, entity string) error {
	n.entities = append(n.entities, entity)
	return nil
}

func seededStore(opts ...Option) *Store {
	s := New(opts...)
	s.PutStudent(models.Student{ID: "s1", Code: "A001", Name: "Ana", Status: models.StudentStatusActive, CumulativeAverage: 3.2})
	s.PutCourse(models.Course{ID: "c1", Code: "BD101", Name: "Databases", Credits: 4})
	return s
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	s := seededStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		e := &models.Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Period: "2024-1", Status: models.EnrollmentStatusEnrolled}
		require.NoError(t, tx.InsertEnrollment(ctx, e))
		_, err := tx.GetEnrollment(ctx, "e1")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		_, err := r.GetEnrollment(ctx, "e1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))

	events, err := s.ChangesSince(ctx, models.EntityEnrollments, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCommitAppendsOrderedEvents(t *testing.T) {
	notifier := &recordingNotifier{}
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := seededStore(WithNotifier(notifier), WithClock(func() time.Time { return fixed }))
	ctx := store.WithActor(context.Background(), "registrar")

	require.NoError(t, s.RunInTransaction(ctx, func(tx store.Tx) error {
		student, err := tx.LockStudent(ctx, "s1")
		if err != nil {
			return err
		}
		before := student.Clone()
		student.CumulativeAverage = 2.8
		if err := tx.UpdateStudent(ctx, student, models.DiffStudent(before, student)); err != nil {
			return err
		}
		return tx.InsertEnrollment(ctx, &models.Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Period: "2024-1", Status: models.EnrollmentStatusEnrolled})
	}))

	students, err := s.ChangesSince(ctx, models.EntityStudents, 0, 10)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, int64(1), students[0].Seq)
	assert.Equal(t, "registrar", students[0].Actor)
	assert.Equal(t, fixed, students[0].CommittedAt)
	newAvg, ok := students[0].Delta[models.FieldCumulativeAverage].NewFloat()
	require.True(t, ok)
	assert.Equal(t, 2.8, newAvg)

	enrollments, err := s.ChangesSince(ctx, models.EntityEnrollments, 0, 10)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, models.OperationInsert, enrollments[0].Operation)

	assert.Equal(t, []string{"enrollments", "students"}, notifier.entities)

	rest, err := s.ChangesSince(ctx, models.EntityStudents, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestInsertEnrollmentRejectsSecondEnrolledRow(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		first := &models.Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Period: "2024-1", Status: models.EnrollmentStatusEnrolled}
		if err := tx.InsertEnrollment(ctx, first); err != nil {
			return err
		}
		second := &models.Enrollment{ID: "e2", StudentID: "s1", CourseID: "c1", Period: "2024-1", Status: models.EnrollmentStatusEnrolled}
		return tx.InsertEnrollment(ctx, second)
	})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestDedupeWriters(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	require.NoError(t, s.RunInTransaction(ctx, func(tx store.Tx) error {
		ok, err := tx.ClaimReceipt(ctx, "audit", "k1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.ClaimReceipt(ctx, "audit", "k1")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.InsertGradeHistory(ctx, &models.GradeHistoryRecord{ID: "h1", StudentID: "s1", GradeEventID: "g1"})
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.InsertGradeHistory(ctx, &models.GradeHistoryRecord{ID: "h2", StudentID: "s1", GradeEventID: "g1"})
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		history, err := r.ListGradeHistory(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
		return nil
	}))
}

func TestRunInTransactionHonoursCancelledContext(t *testing.T) {
	s := seededStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		cancel()
		return tx.InsertEnrollment(ctx, &models.Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Period: "2024-1", Status: models.EnrollmentStatusEnrolled})
	})
	require.ErrorIs(t, err, context.Canceled)

	count := 0
	require.NoError(t, s.View(context.Background(), func(r store.Reader) error {
		var err error
		count, err = r.CountEnrollments(context.Background(), store.EnrollmentQuery{})
		return err
	}))
	assert.Zero(t, count)
}

func TestListStudentsOrdering(t *testing.T) {
	s := New()
	s.PutStudent(models.Student{ID: "1", Code: "B", CumulativeAverage: 4.0, Status: models.StudentStatusActive})
	s.PutStudent(models.Student{ID: "2", Code: "A", CumulativeAverage: 4.0, Status: models.StudentStatusActive})
	s.PutStudent(models.Student{ID: "3", Code: "C", CumulativeAverage: 2.0, Status: models.StudentStatusActive})
	s.PutStudent(models.Student{ID: "4", Code: "D", CumulativeAverage: 5.0, Status: models.StudentStatusGraduated})
	ctx := context.Background()

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		ranked, err := r.ListStudents(ctx, store.StudentQuery{Status: models.StudentStatusActive, Order: store.OrderByAverageDesc})
		require.NoError(t, err)
		require.Len(t, ranked, 3)
		assert.Equal(t, []string{"A", "B", "C"}, []string{ranked[0].Code, ranked[1].Code, ranked[2].Code})

		pageTwo, err := r.ListStudents(ctx, store.StudentQuery{Status: models.StudentStatusActive, Order: store.OrderByAverageDesc, Offset: 2, Limit: 2})
		require.NoError(t, err)
		require.Len(t, pageTwo, 1)
		assert.Equal(t, "C", pageTwo[0].Code)
		return nil
	}))
}

func TestCursorRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	seq, err := s.LoadCursor(ctx, "students")
	require.NoError(t, err)
	assert.Zero(t, seq)
	require.NoError(t, s.SaveCursor(ctx, "students", 7))
	seq, err = s.LoadCursor(ctx, "students")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestInsertSeqsFollowCommitOrder(t *testing.T) {
	s := seededStore()
	s.PutEnrollment(models.Enrollment{ID: "e0", StudentID: "s1", CourseID: "c1", Period: "2023-2", Status: models.EnrollmentStatusPassed})
	ctx := context.Background()

	for _, id := range []string{"e2", "e1"} {
		id := id
		require.NoError(t, s.RunInTransaction(ctx, func(tx store.Tx) error {
			return tx.InsertEnrollment(ctx, &models.Enrollment{ID: id, StudentID: "s1", CourseID: "c1", Period: "2024-" + id[1:], Status: models.EnrollmentStatusEnrolled})
		}))
	}

	require.NoError(t, s.RunInTransaction(ctx, func(tx store.Tx) error {
		seqs, err := tx.InsertSeqs(ctx, models.EntityEnrollments, []string{"e0", "e1", "e2"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"e2": 1, "e1": 2}, seqs)
		return nil
	}))
}
