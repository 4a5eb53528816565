package dto

import "github.com/noah-isme/academic-engine/internal/models"

// ReportQuery captures the shared report query string.
type ReportQuery struct {
	Period    string   `form:"period" validate:"omitempty,max=32"`
	ProgramID string   `form:"program" validate:"omitempty,max=64"`
	Threshold *float64 `form:"threshold" validate:"omitempty,min=0,max=5"`
	Page      int      `form:"page" validate:"omitempty,min=1"`
	Limit     int      `form:"limit" validate:"omitempty,min=1,max=500"`
}

// Filter converts the query into a report filter.
func (q ReportQuery) Filter() models.ReportFilter {
	return models.ReportFilter{
		Period:    q.Period,
		ProgramID: q.ProgramID,
		Threshold: q.Threshold,
		Page:      q.Page,
		PageSize:  q.Limit,
	}
}
