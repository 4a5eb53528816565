package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/repository/memory"
	"github.com/noah-isme/academic-engine/internal/store"
	"github.com/noah-isme/academic-engine/pkg/feed"
	"github.com/noah-isme/academic-engine/pkg/policy"
)

var t0 = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

type countingMetrics struct {
	mu      sync.Mutex
	results map[string]int
	cursors map[string]int64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{results: map[string]int{}, cursors: map[string]int64{}}
}

func (m *countingMetrics) RecordTriggerEvent(handler, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[handler+"/"+result]++
}

func (m *countingMetrics) SetTriggerCursor(stream string, seq int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[stream] = seq
}

func (m *countingMetrics) count(handler, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[handler+"/"+result]
}

func newEngine(st store.Store, metrics Metrics, handlers ...Handler) *Engine {
	if handlers == nil {
		pol, _ := policy.Load("", 30)
		handlers = DefaultHandlers(Rules{RiskThreshold: 3.0, RiskHighThreshold: 2.5, Policy: pol, Now: func() time.Time { return t0 }})
	}
	return NewEngine(st, nil, handlers, Config{BatchSize: 2, MaxRetries: 2, RetryDelay: time.Millisecond}, metrics, nil)
}

func drainAll(t *testing.T, e *Engine) {
	t.Helper()
	for i := 0; i < 10; i++ {
		n, err := e.Drain(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return
		}
	}
	t.Fatal("change feed did not settle")
}

func updateAverage(t *testing.T, st store.Store, studentID string, average float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.RunInTransaction(ctx, func(tx store.Tx) error {
		s, err := tx.LockStudent(ctx, studentID)
		if err != nil {
			return err
		}
		before := s.Clone()
		s.CumulativeAverage = average
		return tx.UpdateStudent(ctx, s, models.DiffStudent(before, s))
	}))
}

func notifications(t *testing.T, st store.Store, studentID string) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, st.View(context.Background(), func(r store.Reader) error {
		list, err := r.ListNotifications(context.Background(), studentID)
		out = list
		return err
	}))
	return out
}

func TestRiskNotifierMedioScenario(t *testing.T) {
	st := memory.New()
	st.PutStudent(models.Student{ID: "s1", Code: "A001", Name: "Ana", Status: models.StudentStatusActive, CumulativeAverage: 3.1})
	metrics := newCountingMetrics()
	engine := newEngine(st, metrics)

	updateAverage(t, st, "s1", 2.8)
	drainAll(t, engine)

	got := notifications(t, st, "s1")
	require.Len(t, got, 1)
	assert.Equal(t, models.RiskLevelMedio, got[0].Level)
	assert.InDelta(t, 2.8, got[0].Average, 1e-9)

	events, err := st.ChangesSince(context.Background(), models.EntityStudents, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, engine.Dispatch(context.Background(), events[0]))

	assert.Len(t, notifications(t, st, "s1"), 1)
	assert.Equal(t, 1, metrics.count(HandlerRiskNotifier, ResultApplied))
	assert.Equal(t, 1, metrics.count(HandlerRiskNotifier, ResultReplay))
}

func TestRiskNotifierThresholdCrossing(t *testing.T) {
	tests := []struct {
		name string
		old  interface{}
		new  float64
		want models.RiskLevel
	}{
		{name: "drops to medio", old: 3.1, new: 2.8, want: models.RiskLevelMedio},
		{name: "drops to alto", old: 3.0, new: 2.4, want: models.RiskLevelAlto},
		{name: "first average below", old: nil, new: 2.9, want: models.RiskLevelMedio},
		{name: "already below", old: 2.8, new: 2.6},
		{name: "recovers", old: 2.5, new: 3.2},
		{name: "lands on threshold", old: 3.2, new: 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.New()
			engine := newEngine(st, nil, &RiskNotifier{threshold: 3.0, high: 2.5, now: func() time.Time { return t0 }})
			ev := models.ChangeEvent{
				Seq:        7,
				EntityType: models.EntityStudents,
				Operation:  models.OperationUpdate,
				DocumentID: "s9",
				Delta:      models.Delta{models.FieldCumulativeAverage: {Old: tt.old, New: tt.new}},
			}
			require.NoError(t, engine.Dispatch(context.Background(), ev))

			got := notifications(t, st, "s9")
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Level)
			assert.Equal(t, "s9:7", got[0].DedupeKey)
		})
	}
}

type derivedState struct {
	Students         []models.Student
	Enrollments      []models.Enrollment
	History          []models.GradeHistoryRecord
	Notifications    []models.Notification
	Audits           []models.AuditRecord
	EnrollmentEvents int
	StudentEvents    int
}

func snapshot(t *testing.T, st *memory.Store) derivedState {
	t.Helper()
	ctx := context.Background()
	var out derivedState
	require.NoError(t, st.View(ctx, func(r store.Reader) error {
		var err error
		if out.Students, err = r.ListStudents(ctx, store.StudentQuery{}); err != nil {
			return err
		}
		if out.Enrollments, err = r.ListEnrollments(ctx, store.EnrollmentQuery{}); err != nil {
			return err
		}
		for _, id := range []string{"s1", "s2", "s3"} {
			h, err := r.ListGradeHistory(ctx, id)
			if err != nil {
				return err
			}
			out.History = append(out.History, h...)
			n, err := r.ListNotifications(ctx, id)
			if err != nil {
				return err
			}
			out.Notifications = append(out.Notifications, n...)
			a, err := r.ListAuditRecords(ctx, id)
			if err != nil {
				return err
			}
			out.Audits = append(out.Audits, a...)
		}
		return nil
	}))
	enrollmentEvents, err := st.ChangesSince(ctx, models.EntityEnrollments, 0, 0)
	require.NoError(t, err)
	studentEvents, err := st.ChangesSince(ctx, models.EntityStudents, 0, 0)
	require.NoError(t, err)
	out.EnrollmentEvents, out.StudentEvents = len(enrollmentEvents), len(studentEvents)
	return out
}

// seedFeed produces events that every handler reacts to: two inserts into a
// one-seat offering, a pass recorded without touching the student, and a
// direct average drop.
func seedFeed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New(memory.WithClock(func() time.Time { return t0 }))
	st.PutCourse(models.Course{ID: "bd101", Code: "BD101", Name: "Databases", Credits: 4})
	st.PutCourse(models.Course{ID: "mat200", Code: "MAT200", Name: "Calculus II", Credits: 3})
	st.PutOffering(models.CourseOffering{CourseID: "bd101", Period: "2024-1", Capacity: 1})
	st.PutStudent(models.Student{
		ID: "s1", Code: "A001", Name: "Ana", Status: models.StudentStatusActive, CumulativeAverage: 3.2, CreditsEarned: 3,
		CompletedCourses: models.CompletedCourses{{CourseID: "mat100", EnrollmentID: "e0", Period: "2023-2", FinalGrade: 3.2, Credits: 3}},
	})
	st.PutStudent(models.Student{ID: "s2", Code: "A002", Name: "Bruno", Status: models.StudentStatusActive})
	st.PutStudent(models.Student{ID: "s3", Code: "A003", Name: "Carla", Status: models.StudentStatusActive, CumulativeAverage: 3.1})

	seats := []models.Enrollment{
		{ID: "es1", StudentID: "s1", CourseID: "bd101"},
		{ID: "es2", StudentID: "s2", CourseID: "bd101"},
		{ID: "em1", StudentID: "s1", CourseID: "mat200"},
	}
	require.NoError(t, st.RunInTransaction(ctx, func(tx store.Tx) error {
		for i := range seats {
			e := seats[i]
			e.Period = "2024-1"
			e.Status = models.EnrollmentStatusEnrolled
			e.EnrolledAt = t0.Add(time.Duration(i) * time.Minute)
			if err := tx.InsertEnrollment(ctx, &e); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, st.RunInTransaction(ctx, func(tx store.Tx) error {
		e, err := tx.LockEnrollmentByID(ctx, "em1")
		if err != nil {
			return err
		}
		before := e.Clone()
		g, eventID := 3.5, "g-1"
		e.Status, e.Grade, e.GradeEventID = models.EnrollmentStatusPassed, &g, &eventID
		return tx.UpdateEnrollment(ctx, e, models.DiffEnrollment(before, e))
	}))
	updateAverage(t, st, "s3", 2.4)
	return st
}

func TestDerivedRulesApply(t *testing.T) {
	st := seedFeed(t)
	engine := newEngine(st, newCountingMetrics())
	drainAll(t, engine)
	state := snapshot(t, st)

	var s1 models.Student
	for _, s := range state.Students {
		if s.ID == "s1" {
			s1 = s
		}
	}
	assert.Equal(t, 6, s1.CreditsEarned)
	assert.True(t, s1.HasEnrollment("em1"))
	assert.InDelta(t, 3.35, s1.CumulativeAverage, 1e-9)

	for _, e := range state.Enrollments {
		if e.ID == "es2" {
			assert.Equal(t, models.EnrollmentStatusWithdrawn, e.Status)
			require.NotNil(t, e.WithdrawalReason)
			assert.Equal(t, models.WithdrawalReasonCapacityExceeded, *e.WithdrawalReason)
		}
		if e.ID == "es1" {
			assert.Equal(t, models.EnrollmentStatusEnrolled, e.Status)
		}
	}

	require.Len(t, state.History, 1)
	assert.Equal(t, "g-1", state.History[0].GradeEventID)
	assert.Equal(t, 3.5, state.History[0].Grade)

	require.Len(t, state.Notifications, 1)
	assert.Equal(t, "s3", state.Notifications[0].StudentID)
	assert.Equal(t, models.RiskLevelAlto, state.Notifications[0].Level)

	// One audit per student event: s3's drop and s1's credit update.
	require.Len(t, state.Audits, 2)
	for _, a := range state.Audits {
		if a.DocumentID == "s1" {
			assert.Equal(t, "trigger:"+HandlerCreditUpdater, a.Actor)
		}
	}
}

func TestReplayLeavesDerivedStateUnchanged(t *testing.T) {
	st := seedFeed(t)
	metrics := newCountingMetrics()
	engine := newEngine(st, metrics)
	ctx := context.Background()
	drainAll(t, engine)
	want := snapshot(t, st)

	require.NoError(t, st.SaveCursor(ctx, "trigger:"+string(models.EntityEnrollments), 0))
	require.NoError(t, st.SaveCursor(ctx, "trigger:"+string(models.EntityStudents), 0))
	drainAll(t, engine)

	for _, stream := range []models.EntityType{models.EntityEnrollments, models.EntityStudents} {
		events, err := st.ChangesSince(ctx, stream, 0, 0)
		require.NoError(t, err)
		for round := 0; round < 3; round++ {
			for _, ev := range events {
				require.NoError(t, engine.Dispatch(ctx, ev))
			}
		}
	}

	assert.Equal(t, want, snapshot(t, st))
	for _, name := range []string{HandlerAuditLogger, HandlerRiskNotifier, HandlerCreditUpdater, HandlerCapacityValidator, HandlerGradeHistorian} {
		assert.Positive(t, metrics.count(name, ResultReplay), name)
	}
}

func TestGradeHistorianRecordsCorrectionOnce(t *testing.T) {
	st := seedFeed(t)
	engine := newEngine(st, nil, &GradeHistorian{})
	ctx := context.Background()

	correction := models.ChangeEvent{
		Seq:        99,
		EntityType: models.EntityEnrollments,
		Operation:  models.OperationUpdate,
		DocumentID: "em1",
		Delta: models.Delta{
			models.FieldGrade:        {Old: 3.5, New: 4.0},
			models.FieldGradeEventID: {Old: "g-1", New: "g-2"},
		},
		CommittedAt: t0,
	}
	require.NoError(t, engine.Dispatch(ctx, correction))
	require.NoError(t, engine.Dispatch(ctx, correction))

	var history []models.GradeHistoryRecord
	require.NoError(t, st.View(ctx, func(r store.Reader) error {
		var err error
		history, err = r.ListGradeHistory(ctx, "s1")
		return err
	}))
	require.Len(t, history, 1)
	assert.Equal(t, models.GradeKindCorrection, history[0].Kind)
	assert.Equal(t, 4.0, history[0].Grade)
}

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) Name() string                           { return "flaky" }
func (h *flakyHandler) Entity() models.EntityType              { return models.EntityStudents }
func (h *flakyHandler) Matches(models.ChangeEvent) bool        { return true }
func (h *flakyHandler) DedupeKey(ev models.ChangeEvent) string { return ev.DocumentID }

func (h *flakyHandler) Apply(context.Context, store.Tx, models.ChangeEvent) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func TestHandlerFailuresAreRetried(t *testing.T) {
	st := memory.New()
	st.PutStudent(models.Student{ID: "s1", Code: "A001", Name: "Ana", CumulativeAverage: 3.5})
	updateAverage(t, st, "s1", 3.4)
	ctx := context.Background()

	h := &flakyHandler{failures: 2}
	engine := newEngine(st, nil, h)
	n, err := engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, h.calls)

	cursor, err := st.LoadCursor(ctx, "trigger:students")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cursor)
}

func TestExhaustedRetriesHoldTheCursor(t *testing.T) {
	st := memory.New()
	st.PutStudent(models.Student{ID: "s1", Code: "A001", Name: "Ana", CumulativeAverage: 3.5})
	updateAverage(t, st, "s1", 3.4)
	ctx := context.Background()

	h := &flakyHandler{failures: 100}
	engine := newEngine(st, nil, h)
	_, err := engine.Drain(ctx)
	require.Error(t, err)
	assert.Equal(t, 3, h.calls)

	cursor, err := st.LoadCursor(ctx, "trigger:students")
	require.NoError(t, err)
	assert.Zero(t, cursor)

	h.failures = 0
	n, err := engine.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunWakesOnChangeSignal(t *testing.T) {
	bus := feed.NewLocalBus()
	defer bus.Close()
	st := memory.New(memory.WithNotifier(bus))
	st.PutStudent(models.Student{ID: "s1", Code: "A001", Name: "Ana", Status: models.StudentStatusActive, CumulativeAverage: 3.1})

	pol, _ := policy.Load("", 30)
	engine := NewEngine(st, bus, DefaultHandlers(Rules{Policy: pol}), Config{PollInterval: time.Hour, RetryDelay: time.Millisecond}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	updateAverage(t, st, "s1", 2.9)
	require.Eventually(t, func() bool { return len(notifications(t, st, "s1")) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

// passEnrollment closes an enrollment as Passed and updates the student's
// summary in the same transaction, as the coordinator does.
func passEnrollment(t *testing.T, st store.Store, enrollmentID string, grade float64, eventID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.RunInTransaction(ctx, func(tx store.Tx) error {
		e, err := tx.LockEnrollmentByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		s, err := tx.LockStudent(ctx, e.StudentID)
		if err != nil {
			return err
		}
		c, err := tx.GetCourse(ctx, e.CourseID)
		if err != nil {
			return err
		}
		before := e.Clone()
		e.Status, e.Grade, e.GradeEventID = models.EnrollmentStatusPassed, &grade, &eventID
		if err := tx.UpdateEnrollment(ctx, e, models.DiffEnrollment(before, e)); err != nil {
			return err
		}
		prev := s.Clone()
		s.RecordPassed(models.CompletedCourse{CourseID: c.ID, EnrollmentID: e.ID, Period: e.Period, FinalGrade: grade, Credits: c.Credits})
		return tx.UpdateStudent(ctx, s, models.DiffStudent(prev, s))
	}))
}

func TestCreditUpdaterKeepsRetakeSummary(t *testing.T) {
	st := memory.New(memory.WithClock(func() time.Time { return t0 }))
	st.PutCourse(models.Course{ID: "mat100", Code: "MAT100", Name: "Calculus", Credits: 3})
	st.PutStudent(models.Student{ID: "s2", Code: "A002", Name: "Bruno", Status: models.StudentStatusActive})
	st.PutEnrollment(models.Enrollment{ID: "e-first", StudentID: "s2", CourseID: "mat100", Period: "2024-1", Status: models.EnrollmentStatusEnrolled, EnrolledAt: t0})
	st.PutEnrollment(models.Enrollment{ID: "e-retake", StudentID: "s2", CourseID: "mat100", Period: "2024-2", Status: models.EnrollmentStatusEnrolled, EnrolledAt: t0.Add(time.Hour)})

	// The engine only catches up after both passes committed.
	passEnrollment(t, st, "e-first", 3.0, "g-first")
	passEnrollment(t, st, "e-retake", 5.0, "g-retake")
	engine := newEngine(st, newCountingMetrics())
	drainAll(t, engine)

	state := snapshot(t, st)
	require.Len(t, state.Students, 1)
	s2 := state.Students[0]
	assert.InDelta(t, 5.0, s2.CumulativeAverage, 1e-9)
	assert.Equal(t, 3, s2.CreditsEarned)
	summary, ok := s2.Summary("mat100")
	require.True(t, ok)
	assert.Equal(t, "e-retake", summary.EnrollmentID)
	assert.Equal(t, "2024-2", summary.Period)
	assert.Equal(t, 2, state.StudentEvents)
}

func TestCapacityValidatorRanksByCommitOrder(t *testing.T) {
	st := memory.New(memory.WithClock(func() time.Time { return t0 }))
	st.PutCourse(models.Course{ID: "bd101", Code: "BD101", Name: "Databases", Credits: 4})
	st.PutOffering(models.CourseOffering{CourseID: "bd101", Period: "2024-1", Capacity: 1})
	st.PutStudent(models.Student{ID: "s1", Code: "A001", Name: "Ana", Status: models.StudentStatusActive})
	st.PutStudent(models.Student{ID: "s2", Code: "A002", Name: "Bruno", Status: models.StudentStatusActive})
	ctx := context.Background()

	// s2 started first but committed second.
	rows := []models.Enrollment{
		{ID: "e-s1", StudentID: "s1", EnrolledAt: t0.Add(time.Minute)},
		{ID: "e-s2", StudentID: "s2", EnrolledAt: t0},
	}
	for i := range rows {
		e := rows[i]
		e.CourseID, e.Period, e.Status = "bd101", "2024-1", models.EnrollmentStatusEnrolled
		require.NoError(t, st.RunInTransaction(ctx, func(tx store.Tx) error { return tx.InsertEnrollment(ctx, &e) }))
	}

	pol, _ := policy.Load("", 30)
	engine := newEngine(st, nil, &CapacityValidator{policy: pol, now: func() time.Time { return t0 }})
	drainAll(t, engine)

	statuses := map[string]models.EnrollmentStatus{}
	for _, e := range snapshot(t, st).Enrollments {
		statuses[e.ID] = e.Status
	}
	assert.Equal(t, models.EnrollmentStatusEnrolled, statuses["e-s1"])
	assert.Equal(t, models.EnrollmentStatusWithdrawn, statuses["e-s2"])
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateReports(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestDerivedWritesInvalidateReports(t *testing.T) {
	st := seedFeed(t)
	engine := newEngine(st, nil)
	reports := &countingInvalidator{}
	engine.UseReportInvalidator(reports)
	ctx := context.Background()

	drainAll(t, engine)
	applied := reports.count()
	assert.Positive(t, applied)

	require.NoError(t, st.SaveCursor(ctx, "trigger:"+string(models.EntityEnrollments), 0))
	require.NoError(t, st.SaveCursor(ctx, "trigger:"+string(models.EntityStudents), 0))
	drainAll(t, engine)
	assert.Equal(t, applied, reports.count())
}
