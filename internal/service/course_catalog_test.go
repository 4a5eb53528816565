package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

func TestDefineCourse(t *testing.T) {
	f := newFixture(t)
	catalog := NewCourseCatalog(f.coordinator, nil, nil)
	ctx := context.Background()

	resp, err := catalog.DefineCourse(ctx, dto.DefineCourseRequest{ID: "bd301", Code: "BD301", Name: "Data Warehousing", Credits: 3, Prerequisites: []string{"adv201", "bd101", "bd101"}})
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, []string{"adv201", "bd101"}, []string(resp.Course.Prerequisites))

	resp, err = catalog.DefineCourse(ctx, dto.DefineCourseRequest{ID: "bd301", Code: "BD301", Name: "Data Warehousing II", Credits: 4, Prerequisites: []string{"adv201"}})
	require.NoError(t, err)
	assert.False(t, resp.Created)
	assert.Equal(t, 4, resp.Course.Credits)

	events, err := f.store.ChangesSince(ctx, models.EntityCourses, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.OperationInsert, events[0].Operation)
	assert.Equal(t, models.OperationUpdate, events[1].Operation)
}

func TestDefineCourseRejectsBadGraphs(t *testing.T) {
	f := newFixture(t)
	catalog := NewCourseCatalog(f.coordinator, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  dto.DefineCourseRequest
		want *appErrors.Error
	}{
		{name: "self reference", req: dto.DefineCourseRequest{ID: "x1", Code: "X1", Name: "Loop", Credits: 2, Prerequisites: []string{"x1"}}, want: appErrors.ErrValidation},
		{name: "unknown prerequisite", req: dto.DefineCourseRequest{ID: "x2", Code: "X2", Name: "Orphan", Credits: 2, Prerequisites: []string{"ghost"}}, want: appErrors.ErrValidation},
		// bd101 <- adv201, so bd101 requiring adv201 closes a loop.
		{name: "cycle", req: dto.DefineCourseRequest{ID: "bd101", Code: "BD101", Name: "Databases", Credits: 4, Prerequisites: []string{"adv201"}}, want: appErrors.ErrValidation},
		{name: "credits out of range", req: dto.DefineCourseRequest{ID: "x3", Code: "X3", Name: "Heavy", Credits: 11}, want: appErrors.ErrValidation},
		{name: "missing code", req: dto.DefineCourseRequest{ID: "x4", Name: "Nameless", Credits: 2}, want: appErrors.ErrValidation},
		{name: "duplicate code", req: dto.DefineCourseRequest{ID: "x5", Code: "mat100", Name: "Calculus again", Credits: 3}, want: appErrors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.DefineCourse(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	events, err := f.store.ChangesSince(ctx, models.EntityCourses, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPrerequisiteGraphCycleFrom(t *testing.T) {
	g := prerequisiteGraph{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"a"},
		"e": nil,
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, g.cycleFrom("a"))
	assert.Equal(t, []string{"a", "b", "c", "a"}, g.cycleFrom("d"))
	assert.Nil(t, g.cycleFrom("e"))

	dag := prerequisiteGraph{"a": {"b", "c"}, "b": {"c"}, "c": nil}
	assert.Nil(t, dag.cycleFrom("a"))
}
