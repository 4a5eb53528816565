package memory

import (
	"context"
	"fmt"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
)

type pendingEvent struct {
	entity     models.EntityType
	operation  models.Operation
	documentID string
	delta      models.Delta
}

// tx mutates a private clone of the committed state. Locks are implicit
// because only one transaction runs at a time.
type tx struct {
	view
	events []pendingEvent
}

var _ store.Tx = (*tx)(nil)

func (t *tx) record(entity models.EntityType, op models.Operation, id string, delta models.Delta) error {
	if len(delta) == 0 {
		return nil
	}
	normalized, err := delta.Normalize()
	if err != nil {
		return err
	}
	t.events = append(t.events, pendingEvent{entity: entity, operation: op, documentID: id, delta: normalized})
	return nil
}

func (t *tx) LockStudent(ctx context.Context, id string) (*models.Student, error) {
	return t.GetStudent(ctx, id)
}

func (t *tx) LockEnrollment(ctx context.Context, studentID, courseID, period string) (*models.Enrollment, error) {
	return t.FindEnrollment(ctx, studentID, courseID, period)
}

func (t *tx) LockEnrollmentByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return t.GetEnrollment(ctx, id)
}

func (t *tx) LockOffering(_ context.Context, courseID, period string, defaultCapacity int) (*models.CourseOffering, error) {
	key := offeringKey{courseID, period}
	o, ok := t.st.offerings[key]
	if !ok {
		o = &models.CourseOffering{CourseID: courseID, Period: period, Capacity: defaultCapacity}
		t.st.offerings[key] = o
	}
	out := *o
	return &out, nil
}

func (t *tx) InsertEnrollment(_ context.Context, e *models.Enrollment) error {
	if _, exists := t.st.enrollments[e.ID]; exists {
		return fmt.Errorf("insert enrollment %s: %w", e.ID, store.ErrConflict)
	}
	if e.Status == models.EnrollmentStatusEnrolled {
		for _, existing := range t.st.enrollments {
			if existing.Status == models.EnrollmentStatusEnrolled &&
				existing.StudentID == e.StudentID && existing.CourseID == e.CourseID && existing.Period == e.Period {
				return fmt.Errorf("insert enrollment %s: %w", e.ID, store.ErrConflict)
			}
		}
	}
	t.st.enrollments[e.ID] = e.Clone()
	return t.record(models.EntityEnrollments, models.OperationInsert, e.ID, models.SnapshotEnrollment(e))
}

func (t *tx) UpdateEnrollment(_ context.Context, e *models.Enrollment, delta models.Delta) error {
	if _, ok := t.st.enrollments[e.ID]; !ok {
		return fmt.Errorf("update enrollment %s: %w", e.ID, store.ErrNotFound)
	}
	t.st.enrollments[e.ID] = e.Clone()
	return t.record(models.EntityEnrollments, models.OperationUpdate, e.ID, delta)
}

func (t *tx) UpdateStudent(_ context.Context, s *models.Student, delta models.Delta) error {
	if _, ok := t.st.students[s.ID]; !ok {
		return fmt.Errorf("update student %s: %w", s.ID, store.ErrNotFound)
	}
	t.st.students[s.ID] = s.Clone()
	return t.record(models.EntityStudents, models.OperationUpdate, s.ID, delta)
}

func (t *tx) SaveCourse(_ context.Context, c *models.Course) error {
	op := models.OperationUpdate
	if _, ok := t.st.courses[c.ID]; !ok {
		op = models.OperationInsert
	}
	for id, existing := range t.st.courses {
		if id != c.ID && existing.Code == c.Code {
			return fmt.Errorf("save course %s: %w", c.Code, store.ErrConflict)
		}
	}
	t.st.courses[c.ID] = c.Clone()
	return t.record(models.EntityCourses, op, c.ID, models.SnapshotCourse(c))
}

func (t *tx) InsertGradeHistory(_ context.Context, r *models.GradeHistoryRecord) (bool, error) {
	if _, ok := t.st.gradeEvents[r.GradeEventID]; ok {
		return false, nil
	}
	t.st.gradeEvents[r.GradeEventID] = struct{}{}
	t.st.history = append(t.st.history, *r)
	return true, nil
}

func (t *tx) InsertAuditRecord(_ context.Context, r *models.AuditRecord) (bool, error) {
	if _, ok := t.st.auditKeys[r.DedupeKey]; ok {
		return false, nil
	}
	t.st.auditKeys[r.DedupeKey] = struct{}{}
	t.st.audits = append(t.st.audits, *r)
	return true, nil
}

func (t *tx) InsertNotification(_ context.Context, n *models.Notification) (bool, error) {
	if _, ok := t.st.notifyKeys[n.DedupeKey]; ok {
		return false, nil
	}
	t.st.notifyKeys[n.DedupeKey] = struct{}{}
	t.st.notifications = append(t.st.notifications, *n)
	return true, nil
}

func (t *tx) ClaimReceipt(_ context.Context, handler, key string) (bool, error) {
	id := handler + "\x00" + key
	if _, ok := t.st.receipts[id]; ok {
		return false, nil
	}
	t.st.receipts[id] = struct{}{}
	return true, nil
}

func (t *tx) InsertSeqs(_ context.Context, entity models.EntityType, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	for _, id := range ids {
		if seq, ok := t.st.insertSeqs[insertKey(entity, id)]; ok {
			out[id] = seq
		}
	}
	return out, nil
}
