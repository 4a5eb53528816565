package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPassedAddsCreditsOnce(t *testing.T) {
	s := &Student{}
	added := s.RecordPassed(CompletedCourse{CourseID: "c1", EnrollmentID: "e1", Period: "2024-1", FinalGrade: 4.0, Credits: 3})
	require.True(t, added)
	added = s.RecordPassed(CompletedCourse{CourseID: "c2", EnrollmentID: "e2", Period: "2024-1", FinalGrade: 3.0, Credits: 1})
	require.True(t, added)

	assert.Equal(t, 4, s.CreditsEarned)
	assert.InDelta(t, 3.75, s.CumulativeAverage, 1e-9)

	added = s.RecordPassed(CompletedCourse{CourseID: "c1", EnrollmentID: "e3", Period: "2024-2", FinalGrade: 5.0, Credits: 3})
	assert.False(t, added)
	assert.Equal(t, 4, s.CreditsEarned)
	assert.InDelta(t, 4.5, s.CumulativeAverage, 1e-9)
	assert.True(t, s.HasEnrollment("e3"))
	assert.False(t, s.HasEnrollment("e1"))
}

func TestEnrollmentTransitions(t *testing.T) {
	assert.True(t, EnrollmentStatusEnrolled.CanTransitionTo(EnrollmentStatusPassed))
	assert.True(t, EnrollmentStatusEnrolled.CanTransitionTo(EnrollmentStatusWithdrawn))
	assert.False(t, EnrollmentStatusPassed.CanTransitionTo(EnrollmentStatusFailed))
	assert.False(t, EnrollmentStatusEnrolled.CanTransitionTo(EnrollmentStatusEnrolled))
	assert.False(t, EnrollmentStatusEnrolled.Terminal())
}

func TestDiffStudentAverageDelta(t *testing.T) {
	before := &Student{ID: "s1", CumulativeAverage: 3.1, Status: StudentStatusActive}
	after := before.Clone()
	after.CumulativeAverage = 2.8

	delta, err := DiffStudent(before, after).Normalize()
	require.NoError(t, err)
	require.Len(t, delta, 1)

	change := delta[FieldCumulativeAverage]
	oldAvg, ok := change.OldFloat()
	require.True(t, ok)
	newAvg, ok := change.NewFloat()
	require.True(t, ok)
	assert.Equal(t, 3.1, oldAvg)
	assert.Equal(t, 2.8, newAvg)
}

func TestSnapshotEnrollmentHasNoOldValues(t *testing.T) {
	e := &Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Period: "2024-1", Status: EnrollmentStatusEnrolled}
	delta := SnapshotEnrollment(e)
	require.True(t, delta.Has(FieldStatus))
	assert.Nil(t, delta[FieldStatus].Old)
	assert.Equal(t, "ENROLLED", delta[FieldStatus].New)
	assert.False(t, delta.Has(FieldGrade))
}

func TestDeltaScanValue(t *testing.T) {
	in := Delta{FieldGrade: {Old: nil, New: 4.5}}
	raw, err := in.Value()
	require.NoError(t, err)

	var out Delta
	require.NoError(t, out.Scan(raw))
	grade, ok := out[FieldGrade].NewFloat()
	require.True(t, ok)
	assert.Equal(t, 4.5, grade)

	require.NoError(t, out.Scan(nil))
	assert.Empty(t, out)
}

func TestClassifyRisk(t *testing.T) {
	assert.Equal(t, RiskLevelMedio, ClassifyRisk(2.8, 2.5))
	assert.Equal(t, RiskLevelAlto, ClassifyRisk(2.4, 2.5))
}
