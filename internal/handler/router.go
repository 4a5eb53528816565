package handler

import "github.com/gin-gonic/gin"

// Handlers groups the HTTP surfaces mounted under the API prefix.
type Handlers struct {
	Academic *AcademicHandler
	Reports  *ReportHandler
	Metrics  *MetricsHandler
}

// Register mounts the operational endpoints on root and the API under prefix.
func Register(r *gin.Engine, prefix string, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.POST("/enrollments", h.Academic.Enroll)
	api.POST("/withdrawals", h.Academic.Withdraw)
	api.POST("/grades", h.Academic.RecordGrade)
	api.POST("/grades/corrections", h.Academic.CorrectGrade)
	api.POST("/graduations", h.Academic.Graduate)
	api.POST("/courses", h.Academic.DefineCourse)

	reports := api.Group("/reports")
	reports.GET("/course-averages", h.Reports.CourseAverages)
	reports.GET("/at-risk", h.Reports.AtRisk)
	reports.GET("/at-risk/stream", h.Reports.StreamAtRisk)
	reports.GET("/most-failed", h.Reports.MostFailed)
	reports.GET("/instructor-load", h.Reports.InstructorLoad)
	reports.GET("/graduations", h.Reports.GraduationStats)
	reports.GET("/ranking", h.Reports.Ranking)
	reports.GET("/ranking/stream", h.Reports.StreamRanking)
	reports.GET("/dropout", h.Reports.Dropout)

	api.GET("/exports/:report", h.Reports.Export)
	api.GET("/system/metrics", h.Metrics.Summary)
}
