package models

import "time"

// AuditRecord is an append-only trail entry for a student write.
type AuditRecord struct {
	ID         string    `db:"id" json:"id"`
	Operation  Operation `db:"operation" json:"operation"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Delta      Delta     `db:"delta" json:"delta"`
	Actor      string    `db:"actor" json:"actor"`
	EventSeq   int64     `db:"event_seq" json:"event_seq"`
	DedupeKey  string    `db:"dedupe_key" json:"dedupe_key"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Grade history kinds.
const (
	GradeKindAssignment = "assignment"
	GradeKindCorrection = "correction"
)

// GradeHistoryRecord is an immutable grade entry, one per grade event.
type GradeHistoryRecord struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	Period       string    `db:"period" json:"period"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Grade        float64   `db:"grade" json:"grade"`
	GradeEventID string    `db:"grade_event_id" json:"grade_event_id"`
	Kind         string    `db:"kind" json:"kind"`
	Reason       *string   `db:"reason" json:"reason,omitempty"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
}

// RiskLevel tags a low-average notification.
type RiskLevel string

// Risk levels.
const (
	RiskLevelMedio RiskLevel = "MEDIO"
	RiskLevelAlto  RiskLevel = "ALTO"
)

// ClassifyRisk returns Alto below high, Medio otherwise.
func ClassifyRisk(average, high float64) RiskLevel {
	if average < high {
		return RiskLevelAlto
	}
	return RiskLevelMedio
}

// Notification is raised when a student's average falls below the risk threshold.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Level     RiskLevel `db:"level" json:"level"`
	Average   float64   `db:"average" json:"average"`
	EventSeq  int64     `db:"event_seq" json:"event_seq"`
	DedupeKey string    `db:"dedupe_key" json:"dedupe_key"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
