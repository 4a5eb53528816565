package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EntityType names a change stream.
type EntityType string

// Streams with change events.
const (
	EntityStudents    EntityType = "students"
	EntityEnrollments EntityType = "enrollments"
	EntityCourses     EntityType = "courses"
)

// Operation is the kind of write recorded in a change event.
type Operation string

// Operations.
const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	// OperationDelete is only produced by writes made outside the engine.
	OperationDelete Operation = "delete"
)

// Delta field names consumed by the trigger handlers.
const (
	FieldCumulativeAverage = "cumulative_average"
	FieldCreditsEarned     = "credits_earned"
	FieldCompletedCourses  = "completed_courses"
	FieldStatus            = "status"
	FieldGrade             = "grade"
	FieldGradeEventID      = "grade_event_id"
	FieldWithdrawalReason  = "withdrawal_reason"
	FieldPrerequisites     = "prerequisites"
)

// ChangeEvent is one committed write in an entity stream. Seq increases
// strictly within a stream in commit order.
type ChangeEvent struct {
	Seq         int64      `db:"seq" json:"seq"`
	EntityType  EntityType `db:"entity_type" json:"entity_type"`
	Operation   Operation  `db:"operation" json:"operation"`
	DocumentID  string     `db:"document_id" json:"document_id"`
	Delta       Delta      `db:"delta" json:"delta"`
	Actor       string     `db:"actor" json:"actor"`
	CommittedAt time.Time  `db:"committed_at" json:"committed_at"`
}

// FieldChange holds the old and new values of a field.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// Delta maps field names to their change.
type Delta map[string]FieldChange

// Value marshals the delta to JSON.
func (d Delta) Value() (driver.Value, error) {
	if d == nil {
		d = Delta{}
	}
	return jsonValue(map[string]FieldChange(d), "delta")
}

// Scan unmarshals a JSON delta.
func (d *Delta) Scan(value interface{}) error {
	out := Delta{}
	if _, err := scanJSON(value, &out, "delta"); err != nil {
		return err
	}
	*d = out
	return nil
}

// Normalize round-trips the delta through JSON so values carry the same Go
// types a database read would produce.
func (d Delta) Normalize() (Delta, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal delta: %w", err)
	}
	out := Delta{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal delta: %w", err)
	}
	return out, nil
}

// Has reports whether the field changed.
func (d Delta) Has(field string) bool {
	_, ok := d[field]
	return ok
}

// OldFloat returns the previous numeric value, if any.
func (c FieldChange) OldFloat() (float64, bool) { return toFloat(c.Old) }

// NewFloat returns the new numeric value, if any.
func (c FieldChange) NewFloat() (float64, bool) { return toFloat(c.New) }

// NewString returns the new string value, if any.
func (c FieldChange) NewString() (string, bool) {
	s, ok := c.New.(string)
	return s, ok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func (d Delta) put(field string, prev, next interface{}, changed bool) {
	if changed {
		d[field] = FieldChange{Old: prev, New: next}
	}
}

// DiffStudent returns the fields that differ between two versions of a student.
func DiffStudent(before, after *Student) Delta {
	d := Delta{}
	d.put("code", before.Code, after.Code, before.Code != after.Code)
	d.put("name", before.Name, after.Name, before.Name != after.Name)
	d.put("email", before.Email, after.Email, before.Email != after.Email)
	d.put("program_id", before.ProgramID, after.ProgramID, before.ProgramID != after.ProgramID)
	d.put("semester", before.Semester, after.Semester, before.Semester != after.Semester)
	d.put(FieldStatus, string(before.Status), string(after.Status), before.Status != after.Status)
	d.put(FieldCreditsEarned, before.CreditsEarned, after.CreditsEarned, before.CreditsEarned != after.CreditsEarned)
	d.put(FieldCumulativeAverage, before.CumulativeAverage, after.CumulativeAverage,
		before.CumulativeAverage != after.CumulativeAverage)
	d.put(FieldCompletedCourses, len(before.CompletedCourses), len(after.CompletedCourses),
		!sameSummaries(before.CompletedCourses, after.CompletedCourses))
	d.put("contact", before.Contact, after.Contact, before.Contact != after.Contact)
	return d
}

// SnapshotStudent describes a newly inserted student.
func SnapshotStudent(s *Student) Delta {
	return withoutOld(DiffStudent(&Student{}, s))
}

// DiffEnrollment returns the fields that differ between two versions of an enrollment.
func DiffEnrollment(before, after *Enrollment) Delta {
	d := Delta{}
	d.put(FieldStatus, string(before.Status), string(after.Status), before.Status != after.Status)
	d.put(FieldGrade, floatOrNil(before.Grade), floatOrNil(after.Grade), !sameFloat(before.Grade, after.Grade))
	d.put(FieldGradeEventID, stringOrNil(before.GradeEventID), stringOrNil(after.GradeEventID),
		!sameString(before.GradeEventID, after.GradeEventID))
	d.put(FieldWithdrawalReason, stringOrNil(before.WithdrawalReason), stringOrNil(after.WithdrawalReason),
		!sameString(before.WithdrawalReason, after.WithdrawalReason))
	return d
}

// SnapshotEnrollment describes a newly inserted enrollment.
func SnapshotEnrollment(e *Enrollment) Delta {
	d := withoutOld(DiffEnrollment(&Enrollment{}, e))
	d["student_id"] = FieldChange{New: e.StudentID}
	d["course_id"] = FieldChange{New: e.CourseID}
	d["period"] = FieldChange{New: e.Period}
	return d
}

// SnapshotCourse describes a course definition.
func SnapshotCourse(c *Course) Delta {
	return Delta{
		"code":              {New: c.Code},
		"name":              {New: c.Name},
		"credits":           {New: c.Credits},
		FieldPrerequisites: {New: []string(c.Prerequisites)},
	}
}

func withoutOld(d Delta) Delta {
	for field, change := range d {
		d[field] = FieldChange{New: change.New}
	}
	return d
}

func sameSummaries(a, b CompletedCourses) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringOrNil(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
