package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
	"github.com/noah-isme/academic-engine/pkg/policy"
)

// Handler names, also used as receipt namespaces.
const (
	HandlerAuditLogger       = "audit_logger"
	HandlerRiskNotifier      = "risk_notifier"
	HandlerCreditUpdater     = "credit_updater"
	HandlerCapacityValidator = "capacity_validator"
	HandlerGradeHistorian    = "grade_historian"
)

// AuditLogger appends an audit record for every student write.
type AuditLogger struct {
	now func() time.Time
}

func (h *AuditLogger) Name() string                    { return HandlerAuditLogger }
func (h *AuditLogger) Entity() models.EntityType       { return models.EntityStudents }
func (h *AuditLogger) Matches(models.ChangeEvent) bool { return true }

func (h *AuditLogger) DedupeKey(ev models.ChangeEvent) string {
	return fmt.Sprintf("%s:%s:%d", ev.DocumentID, ev.Operation, ev.Seq)
}

func (h *AuditLogger) Apply(ctx context.Context, tx store.Tx, ev models.ChangeEvent) error {
	_, err := tx.InsertAuditRecord(ctx, &models.AuditRecord{
		ID:         uuid.NewString(),
		Operation:  ev.Operation,
		EntityType: string(ev.EntityType),
		DocumentID: ev.DocumentID,
		Delta:      ev.Delta,
		Actor:      ev.Actor,
		EventSeq:   ev.Seq,
		DedupeKey:  h.DedupeKey(ev),
		CreatedAt:  h.now(),
	})
	return err
}

// RiskNotifier raises a notification when a student's average crosses below
// the risk threshold.
type RiskNotifier struct {
	threshold float64
	high      float64
	now       func() time.Time
}

func (h *RiskNotifier) Name() string              { return HandlerRiskNotifier }
func (h *RiskNotifier) Entity() models.EntityType { return models.EntityStudents }

func (h *RiskNotifier) Matches(ev models.ChangeEvent) bool {
	return ev.Operation == models.OperationUpdate && ev.Delta.Has(models.FieldCumulativeAverage)
}

func (h *RiskNotifier) DedupeKey(ev models.ChangeEvent) string {
	return fmt.Sprintf("%s:%d", ev.DocumentID, ev.Seq)
}

func (h *RiskNotifier) Apply(ctx context.Context, tx store.Tx, ev models.ChangeEvent) error {
	change := ev.Delta[models.FieldCumulativeAverage]
	average, ok := change.NewFloat()
	if !ok || average >= h.threshold {
		return nil
	}
	if previous, ok := change.OldFloat(); ok && previous < h.threshold {
		return nil
	}
	_, err := tx.InsertNotification(ctx, &models.Notification{
		ID:        uuid.NewString(),
		StudentID: ev.DocumentID,
		Level:     models.ClassifyRisk(average, h.high),
		Average:   average,
		EventSeq:  ev.Seq,
		DedupeKey: h.DedupeKey(ev),
		CreatedAt: h.now(),
	})
	return err
}

// CreditUpdater makes sure a Passed enrollment is reflected in the student's
// completed courses, credits and average.
type CreditUpdater struct {
	now func() time.Time
}

func (h *CreditUpdater) Name() string              { return HandlerCreditUpdater }
func (h *CreditUpdater) Entity() models.EntityType { return models.EntityEnrollments }

func (h *CreditUpdater) Matches(ev models.ChangeEvent) bool {
	if ev.Operation != models.OperationUpdate {
		return false
	}
	status, ok := ev.Delta[models.FieldStatus].NewString()
	return ok && status == string(models.EnrollmentStatusPassed)
}

func (h *CreditUpdater) DedupeKey(ev models.ChangeEvent) string { return ev.DocumentID }

func (h *CreditUpdater) Apply(ctx context.Context, tx store.Tx, ev models.ChangeEvent) error {
	peek, err := tx.GetEnrollment(ctx, ev.DocumentID)
	if err != nil {
		return ignoreMissing(err)
	}
	student, err := tx.LockStudent(ctx, peek.StudentID)
	if err != nil {
		return ignoreMissing(err)
	}
	enrollment, err := tx.LockEnrollmentByID(ctx, ev.DocumentID)
	if err != nil {
		return ignoreMissing(err)
	}
	if enrollment.Status != models.EnrollmentStatusPassed || enrollment.Grade == nil {
		return nil
	}
	course, err := tx.GetCourse(ctx, enrollment.CourseID)
	if err != nil {
		return ignoreMissing(err)
	}
	// A present summary is either this enrollment's or a later retake's.
	if _, ok := student.Summary(course.ID); ok {
		return nil
	}

	before := student.Clone()
	student.RecordPassed(models.CompletedCourse{
		CourseID:     course.ID,
		EnrollmentID: enrollment.ID,
		Period:       enrollment.Period,
		FinalGrade:   *enrollment.Grade,
		Credits:      course.Credits,
	})
	student.UpdatedAt = h.now()
	return tx.UpdateStudent(ctx, student, models.DiffStudent(before, student))
}

// CapacityValidator withdraws an inserted enrollment that ranks beyond the
// offering's capacity in commit order, which is the seq of the insert events.
type CapacityValidator struct {
	policy *policy.Policy
	now    func() time.Time
}

func (h *CapacityValidator) Name() string              { return HandlerCapacityValidator }
func (h *CapacityValidator) Entity() models.EntityType { return models.EntityEnrollments }

func (h *CapacityValidator) Matches(ev models.ChangeEvent) bool {
	return ev.Operation == models.OperationInsert
}

func (h *CapacityValidator) DedupeKey(ev models.ChangeEvent) string { return ev.DocumentID }

func (h *CapacityValidator) Apply(ctx context.Context, tx store.Tx, ev models.ChangeEvent) error {
	peek, err := tx.GetEnrollment(ctx, ev.DocumentID)
	if err != nil {
		return ignoreMissing(err)
	}
	if peek.Status != models.EnrollmentStatusEnrolled {
		return nil
	}
	if _, err := tx.LockStudent(ctx, peek.StudentID); err != nil {
		return ignoreMissing(err)
	}
	offering, err := tx.LockOffering(ctx, peek.CourseID, peek.Period, h.policy.Capacity(peek.CourseID, peek.Period))
	if err != nil {
		return err
	}
	live, err := tx.ListEnrollments(ctx, store.EnrollmentQuery{
		CourseID: peek.CourseID,
		Period:   peek.Period,
		Statuses: []models.EnrollmentStatus{models.EnrollmentStatusEnrolled},
	})
	if err != nil {
		return err
	}
	ids := make([]string, len(live))
	for i := range live {
		ids[i] = live[i].ID
	}
	seqs, err := tx.InsertSeqs(ctx, models.EntityEnrollments, ids)
	if err != nil {
		return err
	}
	// Rows without an insert event predate the feed and rank first.
	rank := 0
	for _, e := range live {
		if e.ID != peek.ID && seqs[e.ID] < ev.Seq {
			rank++
		}
	}
	if rank < offering.Capacity {
		return nil
	}

	enrollment, err := tx.LockEnrollmentByID(ctx, peek.ID)
	if err != nil {
		return ignoreMissing(err)
	}
	before := enrollment.Clone()
	reason := models.WithdrawalReasonCapacityExceeded
	enrollment.Status = models.EnrollmentStatusWithdrawn
	enrollment.WithdrawalReason = &reason
	enrollment.UpdatedAt = h.now()
	return tx.UpdateEnrollment(ctx, enrollment, models.DiffEnrollment(before, enrollment))
}

// GradeHistorian guarantees one history record per grade event.
type GradeHistorian struct{}

func (h *GradeHistorian) Name() string              { return HandlerGradeHistorian }
func (h *GradeHistorian) Entity() models.EntityType { return models.EntityEnrollments }

func (h *GradeHistorian) Matches(ev models.ChangeEvent) bool {
	if ev.Operation != models.OperationUpdate {
		return false
	}
	id, ok := ev.Delta[models.FieldGradeEventID].NewString()
	return ok && id != ""
}

func (h *GradeHistorian) DedupeKey(ev models.ChangeEvent) string {
	id, _ := ev.Delta[models.FieldGradeEventID].NewString()
	return id
}

func (h *GradeHistorian) Apply(ctx context.Context, tx store.Tx, ev models.ChangeEvent) error {
	enrollment, err := tx.GetEnrollment(ctx, ev.DocumentID)
	if err != nil {
		return ignoreMissing(err)
	}
	grade, ok := ev.Delta[models.FieldGrade].NewFloat()
	if !ok {
		if enrollment.Grade == nil {
			return nil
		}
		grade = *enrollment.Grade
	}
	kind := models.GradeKindAssignment
	if ev.Delta[models.FieldGradeEventID].Old != nil {
		kind = models.GradeKindCorrection
	}
	_, err = tx.InsertGradeHistory(ctx, &models.GradeHistoryRecord{
		ID:           uuid.NewString(),
		StudentID:    enrollment.StudentID,
		CourseID:     enrollment.CourseID,
		Period:       enrollment.Period,
		EnrollmentID: enrollment.ID,
		Grade:        grade,
		GradeEventID: h.DedupeKey(ev),
		Kind:         kind,
		RecordedAt:   ev.CommittedAt,
	})
	return err
}

// Derived writes for a vanished document are no-ops.
func ignoreMissing(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
