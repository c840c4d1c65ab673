package primary

import (
	"context"

	"github.com/example/shiftdesk/internal/core/report"
)

// ReportService generates shift reports on demand.
type ReportService interface {
	// GenerateReport computes the report of a shift. Ended shifts always
	// produce the same report; live shifts report up to now.
	GenerateReport(ctx context.Context, shiftID string) (*report.Report, error)
}
