package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// CourseCatalog defines courses while keeping the prerequisite graph acyclic.
type CourseCatalog struct {
	coordinator *Coordinator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseCatalog constructs a CourseCatalog sharing the coordinator's
// transaction policy.
func NewCourseCatalog(coordinator *Coordinator, validate *validator.Validate, logger *zap.Logger) *CourseCatalog {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseCatalog{coordinator: coordinator, validator: validate, logger: logger}
}

// DefineCourse creates or replaces a course definition.
func (s *CourseCatalog) DefineCourse(ctx context.Context, req dto.DefineCourseRequest) (*dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	prereqs := uniqueSorted(req.Prerequisites)
	for _, p := range prereqs {
		if p == id {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "course %s cannot require itself", req.Code)
		}
	}

	var resp dto.CourseResponse
	err := s.coordinator.execute(ctx, "define_course", func(ctx context.Context, tx store.Tx) error {
		courses, err := tx.ListCourses(ctx)
		if err != nil {
			return err
		}

		graph := make(prerequisiteGraph, len(courses)+1)
		var existing *models.Course
		for i := range courses {
			course := courses[i]
			if course.ID == id {
				existing = &courses[i]
				continue
			}
			if strings.EqualFold(course.Code, req.Code) {
				return appErrors.Clonef(appErrors.ErrConflict, "course code %s already in use", req.Code)
			}
			graph[course.ID] = course.Prerequisites
		}
		for _, p := range prereqs {
			if _, ok := graph[p]; !ok {
				return appErrors.Clonef(appErrors.ErrValidation, "unknown prerequisite %s", p)
			}
		}
		graph[id] = prereqs
		if cycle := graph.cycleFrom(id); cycle != nil {
			return appErrors.Clonef(appErrors.ErrValidation, "prerequisite cycle: %s", strings.Join(cycle, " -> "))
		}

		now := s.coordinator.now()
		course := &models.Course{
			ID:            id,
			Code:          req.Code,
			Name:          req.Name,
			Credits:       req.Credits,
			Prerequisites: pq.StringArray(prereqs),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if existing != nil {
			course.CreatedAt = existing.CreatedAt
		}
		if err := tx.SaveCourse(ctx, course); err != nil {
			return err
		}
		resp = dto.CourseResponse{Course: *course, Created: existing == nil}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("course defined", zap.String("course_id", id), zap.String("code", req.Code), zap.Bool("created", resp.Created))
	return &resp, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
