package memory

import (
	"github.com/noah-isme/academic-engine/internal/models"
)

// Seeding writes bypass the change feed; they stand in for the external CRUD
// surface that owns reference data.

func (s *Store) seed(fn func(st *state)) {
	s.writer <- struct{}{}
	defer func() { <-s.writer }()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.committed.clone()
	fn(next)
	s.committed = next
}

// PutStudent inserts or replaces a student.
func (s *Store) PutStudent(student models.Student) {
	if student.CompletedCourses == nil {
		student.CompletedCourses = models.CompletedCourses{}
	}
	s.seed(func(st *state) { st.students[student.ID] = student.Clone() })
}

// PutCourse inserts or replaces a course.
func (s *Store) PutCourse(course models.Course) {
	s.seed(func(st *state) { st.courses[course.ID] = course.Clone() })
}

// PutProgram inserts or replaces a program.
func (s *Store) PutProgram(program models.Program) {
	s.seed(func(st *state) { st.programs[program.ID] = program.Clone() })
}

// PutInstructor inserts or replaces an instructor.
func (s *Store) PutInstructor(instructor models.Instructor) {
	s.seed(func(st *state) { st.instructors[instructor.ID] = instructor.Clone() })
}

// PutOffering inserts or replaces a course offering.
func (s *Store) PutOffering(offering models.CourseOffering) {
	s.seed(func(st *state) {
		o := offering
		st.offerings[offeringKey{offering.CourseID, offering.Period}] = &o
	})
}

// PutPeriod inserts or replaces an academic period.
func (s *Store) PutPeriod(period models.AcademicPeriod) {
	s.seed(func(st *state) {
		p := period
		st.periods[period.Code] = &p
	})
}

// PutEnrollment inserts or replaces an enrollment without emitting an event.
func (s *Store) PutEnrollment(enrollment models.Enrollment) {
	s.seed(func(st *state) { st.enrollments[enrollment.ID] = enrollment.Clone() })
}
