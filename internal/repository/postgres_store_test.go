package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
)

type stubNotifier struct {
	published []string
}

func (n *stubNotifier) Publish(_ context.Context, entity string) error {
	n.published = append(n.published, entity)
	return nil
}

func newStoreMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

var studentRowColumns = []string{"id", "code", "name", "email", "program_id", "semester", "cumulative_average", "status",
	"credits_earned", "completed_courses", "contact", "created_at", "updated_at"}

func TestPostgresStoreRunInTransactionWritesChangeEvents(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	notifier := &stubNotifier{}
	s := NewPostgresStore(db, notifier, nil)
	ctx := store.WithActor(context.Background(), "registrar")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config('academic.outbox', 'engine', true)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET cumulative_average")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO change_streams (entity_type, last_seq)")).
		WithArgs("students", 1).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(int64(5)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO change_events")).
		WithArgs("students", int64(5), "update", "s1", sqlmock.AnyArg(), "registrar").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		student := &models.Student{ID: "s1", CumulativeAverage: 2.8, Status: models.StudentStatusActive}
		delta := models.Delta{models.FieldCumulativeAverage: {Old: 3.1, New: 2.8}}
		return tx.UpdateStudent(ctx, student, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"students"}, notifier.published)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreRunInTransactionSkipsEmptyDelta(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	notifier := &stubNotifier{}
	s := NewPostgresStore(db, notifier, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config('academic.outbox', 'engine', true)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET cumulative_average")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		return tx.UpdateStudent(ctx, &models.Student{ID: "s1"}, models.Delta{})
	})
	require.NoError(t, err)
	assert.Empty(t, notifier.published)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMapsSerializationFailureToConflict(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("s1").
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		_, err := tx.LockStudent(ctx, "s1")
		return err
	})
	require.ErrorIs(t, err, store.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreViewReadsStudent(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow(
			"s1", "A001", "Ana", "ana@uni.edu", "p1", 3, 4.0, "ACTIVE", 4,
			[]byte(`[{"course_id":"c1","enrollment_id":"e1","period":"2024-1","final_grade":4.0,"credits":4}]`),
			[]byte(`{"phone":"555"}`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(studentRowColumns))
	mock.ExpectCommit()

	err := s.View(ctx, func(r store.Reader) error {
		student, err := r.GetStudent(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, student.CompletedCourses, 1)
		assert.Equal(t, "e1", student.CompletedCourses[0].EnrollmentID)
		assert.Equal(t, "555", student.Contact.Phone)

		_, err = r.GetStudent(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreChangesSince(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM change_events WHERE entity_type = $1 AND seq > $2 ORDER BY seq LIMIT $3")).
		WithArgs("enrollments", int64(3), 50).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "entity_type", "operation", "document_id", "delta", "actor", "committed_at"}).
			AddRow(int64(4), "enrollments", "update", "e1", []byte(`{"status":{"old":"ENROLLED","new":"PASSED"}}`), "system", now))

	events, err := s.ChangesSince(context.Background(), models.EntityEnrollments, 3, 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	status, ok := events[0].Delta[models.FieldStatus].NewString()
	require.True(t, ok)
	assert.Equal(t, "PASSED", status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCursor(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT last_seq FROM trigger_cursors WHERE consumer = $1")).
		WithArgs("students").
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trigger_cursors")).
		WithArgs("students", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	seq, err := s.LoadCursor(ctx, "students")
	require.NoError(t, err)
	assert.Zero(t, seq)
	require.NoError(t, s.SaveCursor(ctx, "students", 9))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTxClaimReceiptAndOffering(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trigger_receipts")).
		WithArgs("audit_logger", "s1:update:7").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_offerings")).
		WithArgs("c1", "2024-1", 30).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_offerings WHERE course_id = $1 AND period = $2 FOR UPDATE")).
		WithArgs("c1", "2024-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "period", "capacity"}).AddRow("c1", "2024-1", 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		claimed, err := tx.ClaimReceipt(ctx, "audit_logger", "s1:update:7")
		require.NoError(t, err)
		assert.False(t, claimed)

		offering, err := tx.LockOffering(ctx, "c1", "2024-1", 30)
		require.NoError(t, err)
		assert.Equal(t, 1, offering.Capacity)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReaderListStudentsBuildsFilters(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	ctx := context.Background()
	threshold := 3.0

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE program_id = $1 AND status = $2 AND cumulative_average < $3 ORDER BY cumulative_average ASC, code ASC LIMIT 10 OFFSET 20")).
		WithArgs("p1", "ACTIVE", 3.0).
		WillReturnRows(sqlmock.NewRows(studentRowColumns))
	mock.ExpectCommit()

	err := s.View(ctx, func(r store.Reader) error {
		students, err := r.ListStudents(ctx, store.StudentQuery{
			ProgramID:    "p1",
			Status:       models.StudentStatusActive,
			BelowAverage: &threshold,
			Order:        store.OrderByAverageAsc,
			Offset:       20,
			Limit:        10,
		})
		require.NoError(t, err)
		assert.Empty(t, students)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTxMarksEngineWritesOnce(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config('academic.outbox', 'engine', true)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET cumulative_average")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET cumulative_average")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		if err := tx.UpdateStudent(ctx, &models.Student{ID: "s1"}, models.Delta{}); err != nil {
			return err
		}
		return tx.UpdateStudent(ctx, &models.Student{ID: "s2"}, models.Delta{})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTxInsertSeqs(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document_id, seq FROM change_events")).
		WithArgs("enrollments", "insert", pq.Array([]string{"e1", "e2", "e3"})).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "seq"}).AddRow("e1", int64(4)).AddRow("e3", int64(2)))
	mock.ExpectCommit()

	err := s.RunInTransaction(ctx, func(tx store.Tx) error {
		seqs, err := tx.InsertSeqs(ctx, models.EntityEnrollments, []string{"e1", "e2", "e3"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"e1": 4, "e3": 2}, seqs)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReaderGradedFilter(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	s := NewPostgresStore(db, nil, nil)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE status = $1 AND credits_earned > 0")).
		WithArgs("ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectCommit()

	err := s.View(ctx, func(r store.Reader) error {
		n, err := r.CountStudents(ctx, store.StudentQuery{Status: models.StudentStatusActive, Graded: true})
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
