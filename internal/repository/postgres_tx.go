package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
)

type pendingEvent struct {
	entity     models.EntityType
	operation  models.Operation
	documentID string
	delta      models.Delta
}

// pgTx buffers change events and writes them just before commit, so the
// change_streams row lock is held for as short a time as possible.
type pgTx struct {
	pgReader
	tx     *sqlx.Tx
	actor  string
	events []pendingEvent
	// marked is set once the students trigger has been told to stay silent.
	marked bool
}

var _ store.Tx = (*pgTx)(nil)

func (t *pgTx) record(entity models.EntityType, op models.Operation, id string, delta models.Delta) {
	if len(delta) == 0 {
		return
	}
	t.events = append(t.events, pendingEvent{entity: entity, operation: op, documentID: id, delta: delta})
}

// flushEvents reserves a contiguous seq range per stream. The upsert locks the
// stream row until commit, so sequence order matches commit order.
func (t *pgTx) flushEvents(ctx context.Context) ([]models.EntityType, error) {
	entities := sortedEntities(t.events)
	for _, entity := range entities {
		var batch []pendingEvent
		for _, ev := range t.events {
			if ev.entity == entity {
				batch = append(batch, ev)
			}
		}

		const reserve = `INSERT INTO change_streams (entity_type, last_seq) VALUES ($1, $2)
        ON CONFLICT (entity_type) DO UPDATE SET last_seq = change_streams.last_seq + EXCLUDED.last_seq
        RETURNING last_seq`
		var last int64
		if err := t.tx.QueryRowxContext(ctx, reserve, entity, len(batch)).Scan(&last); err != nil {
			return nil, fmt.Errorf("reserve change sequence: %w", err)
		}

		const insert = `INSERT INTO change_events (entity_type, seq, operation, document_id, delta, actor, committed_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())`
		first := last - int64(len(batch)) + 1
		for i, ev := range batch {
			if _, err := t.tx.ExecContext(ctx, insert, entity, first+int64(i), ev.operation, ev.documentID, ev.delta, t.actor); err != nil {
				return nil, fmt.Errorf("insert change event: %w", err)
			}
		}
	}
	return entities, nil
}

func (t *pgTx) LockStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := t.get(ctx, &student, "student", `SELECT `+studentColumns+` FROM students WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

func (t *pgTx) LockEnrollment(ctx context.Context, studentID, courseID, period string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := t.get(ctx, &enrollment, "enrollment", findEnrollmentQuery+` FOR UPDATE`, studentID, courseID, period); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (t *pgTx) LockEnrollmentByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := t.get(ctx, &enrollment, "enrollment", `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (t *pgTx) LockOffering(ctx context.Context, courseID, period string, defaultCapacity int) (*models.CourseOffering, error) {
	const upsert = `INSERT INTO course_offerings (course_id, period, capacity) VALUES ($1, $2, $3)
        ON CONFLICT (course_id, period) DO NOTHING`
	if _, err := t.tx.ExecContext(ctx, upsert, courseID, period, defaultCapacity); err != nil {
		return nil, fmt.Errorf("ensure course offering: %w", err)
	}
	var offering models.CourseOffering
	const query = `SELECT course_id, period, capacity FROM course_offerings WHERE course_id = $1 AND period = $2 FOR UPDATE`
	if err := t.get(ctx, &offering, "course offering", query, courseID, period); err != nil {
		return nil, err
	}
	return &offering, nil
}

func (t *pgTx) InsertEnrollment(ctx context.Context, e *models.Enrollment) error {
	const query = `INSERT INTO enrollments (id, student_id, course_id, period, enrolled_at, status, grade, grade_event_id, withdrawal_reason, updated_at)
        VALUES (:id, :student_id, :course_id, :period, :enrolled_at, :status, :grade, :grade_event_id, :withdrawal_reason, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	t.record(models.EntityEnrollments, models.OperationInsert, e.ID, models.SnapshotEnrollment(e))
	return nil
}

func (t *pgTx) UpdateEnrollment(ctx context.Context, e *models.Enrollment, delta models.Delta) error {
	const query = `UPDATE enrollments SET status = :status, grade = :grade, grade_event_id = :grade_event_id,
        withdrawal_reason = :withdrawal_reason, updated_at = :updated_at WHERE id = :id`
	res, err := t.tx.NamedExecContext(ctx, query, e)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update enrollment %s: %w", e.ID, store.ErrNotFound)
	}
	t.record(models.EntityEnrollments, models.OperationUpdate, e.ID, delta)
	return nil
}

// markEngineWrite tells the students row trigger that this transaction
// records its own change events. Writes from other clients are captured by
// the trigger instead.
func (t *pgTx) markEngineWrite(ctx context.Context) error {
	if t.marked {
		return nil
	}
	if _, err := t.tx.ExecContext(ctx, `SELECT set_config('academic.outbox', 'engine', true)`); err != nil {
		return fmt.Errorf("mark engine write: %w", err)
	}
	t.marked = true
	return nil
}

func (t *pgTx) UpdateStudent(ctx context.Context, s *models.Student, delta models.Delta) error {
	if err := t.markEngineWrite(ctx); err != nil {
		return err
	}
	const query = `UPDATE students SET cumulative_average = :cumulative_average, status = :status,
        credits_earned = :credits_earned, completed_courses = :completed_courses, updated_at = :updated_at WHERE id = :id`
	res, err := t.tx.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update student %s: %w", s.ID, store.ErrNotFound)
	}
	t.record(models.EntityStudents, models.OperationUpdate, s.ID, delta)
	return nil
}

func (t *pgTx) SaveCourse(ctx context.Context, c *models.Course) error {
	const query = `INSERT INTO courses (id, code, name, credits, prerequisites, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, credits = EXCLUDED.credits,
        prerequisites = EXCLUDED.prerequisites, updated_at = EXCLUDED.updated_at
        RETURNING (xmax = 0) AS inserted`
	var inserted bool
	if err := t.tx.QueryRowxContext(ctx, query, c.ID, c.Code, c.Name, c.Credits, c.Prerequisites, c.CreatedAt, c.UpdatedAt).Scan(&inserted); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	op := models.OperationUpdate
	if inserted {
		op = models.OperationInsert
	}
	t.record(models.EntityCourses, op, c.ID, models.SnapshotCourse(c))
	return nil
}

func (t *pgTx) insertOnce(ctx context.Context, what, query string, arg interface{}) (bool, error) {
	res, err := t.tx.NamedExecContext(ctx, query, arg)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", what, err)
	}
	return n > 0, nil
}

func (t *pgTx) InsertGradeHistory(ctx context.Context, r *models.GradeHistoryRecord) (bool, error) {
	const query = `INSERT INTO grade_history (id, student_id, course_id, period, enrollment_id, grade, grade_event_id, kind, reason, recorded_at)
        VALUES (:id, :student_id, :course_id, :period, :enrollment_id, :grade, :grade_event_id, :kind, :reason, :recorded_at)
        ON CONFLICT (grade_event_id) DO NOTHING`
	return t.insertOnce(ctx, "grade history", query, r)
}

func (t *pgTx) InsertAuditRecord(ctx context.Context, r *models.AuditRecord) (bool, error) {
	const query = `INSERT INTO audit_records (id, operation, entity_type, document_id, delta, actor, event_seq, dedupe_key, created_at)
        VALUES (:id, :operation, :entity_type, :document_id, :delta, :actor, :event_seq, :dedupe_key, :created_at)
        ON CONFLICT (dedupe_key) DO NOTHING`
	return t.insertOnce(ctx, "audit record", query, r)
}

func (t *pgTx) InsertNotification(ctx context.Context, n *models.Notification) (bool, error) {
	const query = `INSERT INTO notifications (id, student_id, level, average, event_seq, dedupe_key, created_at)
        VALUES (:id, :student_id, :level, :average, :event_seq, :dedupe_key, :created_at)
        ON CONFLICT (dedupe_key) DO NOTHING`
	return t.insertOnce(ctx, "notification", query, n)
}

func (t *pgTx) ClaimReceipt(ctx context.Context, handler, key string) (bool, error) {
	const query = `INSERT INTO trigger_receipts (handler, dedupe_key, applied_at) VALUES ($1, $2, NOW())
        ON CONFLICT (handler, dedupe_key) DO NOTHING`
	res, err := t.tx.ExecContext(ctx, query, handler, key)
	if err != nil {
		return false, fmt.Errorf("claim trigger receipt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim trigger receipt: %w", err)
	}
	return n > 0, nil
}

func (t *pgTx) InsertSeqs(ctx context.Context, entity models.EntityType, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const query = `SELECT document_id, seq FROM change_events
        WHERE entity_type = $1 AND operation = $2 AND document_id = ANY($3)`
	rows, err := t.tx.QueryxContext(ctx, query, entity, models.OperationInsert, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list insert sequences: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  string
			seq int64
		)
		if err := rows.Scan(&id, &seq); err != nil {
			return nil, fmt.Errorf("scan insert sequence: %w", err)
		}
		out[id] = seq
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list insert sequences: %w", err)
	}
	return out, nil
}
