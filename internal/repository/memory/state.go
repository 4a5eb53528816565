package memory

import (
	"github.com/noah-isme/academic-engine/internal/models"
)

type offeringKey struct {
	courseID string
	period   string
}

// state is treated as immutable once committed; transactions work on a clone.
type state struct {
	students      map[string]*models.Student
	courses       map[string]*models.Course
	programs      map[string]*models.Program
	instructors   map[string]*models.Instructor
	enrollments   map[string]*models.Enrollment
	offerings     map[offeringKey]*models.CourseOffering
	periods       map[string]*models.AcademicPeriod
	history       []models.GradeHistoryRecord
	audits        []models.AuditRecord
	notifications []models.Notification
	gradeEvents   map[string]struct{}
	auditKeys     map[string]struct{}
	notifyKeys    map[string]struct{}
	receipts      map[string]struct{}
	insertSeqs    map[string]int64
}

func newState() *state {
	return &state{
		students:    map[string]*models.Student{},
		courses:     map[string]*models.Course{},
		programs:    map[string]*models.Program{},
		instructors: map[string]*models.Instructor{},
		enrollments: map[string]*models.Enrollment{},
		offerings:   map[offeringKey]*models.CourseOffering{},
		periods:     map[string]*models.AcademicPeriod{},
		gradeEvents: map[string]struct{}{},
		auditKeys:   map[string]struct{}{},
		notifyKeys:  map[string]struct{}{},
		receipts:    map[string]struct{}{},
		insertSeqs:  map[string]int64{},
	}
}

func (s *state) clone() *state {
	out := &state{
		students:      make(map[string]*models.Student, len(s.students)),
		courses:       make(map[string]*models.Course, len(s.courses)),
		programs:      make(map[string]*models.Program, len(s.programs)),
		instructors:   make(map[string]*models.Instructor, len(s.instructors)),
		enrollments:   make(map[string]*models.Enrollment, len(s.enrollments)),
		offerings:     make(map[offeringKey]*models.CourseOffering, len(s.offerings)),
		periods:       make(map[string]*models.AcademicPeriod, len(s.periods)),
		history:       append([]models.GradeHistoryRecord(nil), s.history...),
		audits:        append([]models.AuditRecord(nil), s.audits...),
		notifications: append([]models.Notification(nil), s.notifications...),
		gradeEvents:   cloneSet(s.gradeEvents),
		auditKeys:     cloneSet(s.auditKeys),
		notifyKeys:    cloneSet(s.notifyKeys),
		receipts:      cloneSet(s.receipts),
		insertSeqs:    make(map[string]int64, len(s.insertSeqs)),
	}
	for k, v := range s.insertSeqs {
		out.insertSeqs[k] = v
	}
	for k, v := range s.students {
		out.students[k] = v.Clone()
	}
	for k, v := range s.courses {
		out.courses[k] = v.Clone()
	}
	for k, v := range s.programs {
		out.programs[k] = v.Clone()
	}
	for k, v := range s.instructors {
		out.instructors[k] = v.Clone()
	}
	for k, v := range s.enrollments {
		out.enrollments[k] = v.Clone()
	}
	for k, v := range s.offerings {
		o := *v
		out.offerings[k] = &o
	}
	for k, v := range s.periods {
		p := *v
		out.periods[k] = &p
	}
	return out
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func insertKey(entity models.EntityType, id string) string {
	return string(entity) + "/" + id
}
