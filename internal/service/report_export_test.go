package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

func TestExportRankingIncludesEveryRow(t *testing.T) {
	svc := newReportService(reportStore(), nil)

	table, err := svc.ExportReport(context.Background(), "ranking", models.ReportFilter{Page: 1, PageSize: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"rank", "code", "name", "program", "average"}, table.Headers)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, []string{"1", "A001", "Ana", "p1", "4.10"}, table.Rows[0])
	assert.Equal(t, "4", table.Rows[3][0])
}

func TestExportEveryReport(t *testing.T) {
	svc := newReportService(reportStore(), nil)

	for _, slug := range ExportableReports {
		table, err := svc.ExportReport(context.Background(), slug, models.ReportFilter{})
		require.NoError(t, err, slug)
		assert.NotEmpty(t, table.Title, slug)
		for _, row := range table.Rows {
			assert.Len(t, row, len(table.Headers), slug)
		}
	}
}

func TestExportUnknownReport(t *testing.T) {
	svc := newReportService(reportStore(), nil)

	_, err := svc.ExportReport(context.Background(), "payroll", models.ReportFilter{})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportStorageFailure(t *testing.T) {
	svc := newReportService(&failingViewStore{Store: reportStore()}, nil)

	_, err := svc.ExportReport(context.Background(), "at-risk", models.ReportFilter{})
	require.ErrorIs(t, err, appErrors.ErrReportUnavailable)
}
