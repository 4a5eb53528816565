package models

import "time"

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Page is one page of a paged report.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ReportFilter scopes report queries. Zero values mean "no filter".
type ReportFilter struct {
	Period    string
	ProgramID string
	Threshold *float64
	Page      int
	PageSize  int
}

// CourseAverage is the mean Passed grade for a course.
type CourseAverage struct {
	CourseID    string  `json:"course_id"`
	CourseCode  string  `json:"course_code"`
	CourseName  string  `json:"course_name"`
	Average     float64 `json:"average"`
	PassedCount int     `json:"passed_count"`
}

// AtRiskStudent is an Active student below the risk threshold.
type AtRiskStudent struct {
	StudentID string    `json:"student_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	ProgramID string    `json:"program_id"`
	Average   float64   `json:"average"`
	Level     RiskLevel `json:"level"`
}

// FailedCourse counts Failed enrollments for a course.
type FailedCourse struct {
	CourseID    string `json:"course_id"`
	CourseCode  string `json:"course_code"`
	CourseName  string `json:"course_name"`
	FailedCount int    `json:"failed_count"`
}

// InstructorCourse is one course assigned to an instructor.
type InstructorCourse struct {
	CourseID   string `json:"course_id"`
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
}

// InstructorLoad lists the courses assigned to an instructor.
type InstructorLoad struct {
	InstructorID   string             `json:"instructor_id"`
	InstructorName string             `json:"instructor_name"`
	Period         string             `json:"period,omitempty"`
	CourseCount    int                `json:"course_count"`
	Courses        []InstructorCourse `json:"courses"`
}

// GraduationStat counts graduates per program.
type GraduationStat struct {
	ProgramID   string `json:"program_id"`
	ProgramName string `json:"program_name"`
	Graduates   int    `json:"graduates"`
}

// RankedStudent is one row of the student ranking.
type RankedStudent struct {
	Rank      int     `json:"rank"`
	StudentID string  `json:"student_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	ProgramID string  `json:"program_id"`
	Average   float64 `json:"average"`
}

// DropoutRate is (Withdrawn+Failed)/terminal for a course offering.
type DropoutRate struct {
	CourseID  string  `json:"course_id"`
	Period    string  `json:"period"`
	Withdrawn int     `json:"withdrawn"`
	Failed    int     `json:"failed"`
	Passed    int     `json:"passed"`
	Terminal  int     `json:"terminal"`
	Rate      float64 `json:"rate"`
}

// SystemMetrics is a point-in-time summary of engine instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	TransactionsCommitted    uint64    `json:"transactions_committed"`
	TransactionsAborted      uint64    `json:"transactions_aborted"`
	TransactionsRejected     uint64    `json:"transactions_rejected"`
	TriggerApplied           uint64    `json:"trigger_applied"`
	TriggerReplays           uint64    `json:"trigger_replays"`
	TriggerFailures          uint64    `json:"trigger_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
