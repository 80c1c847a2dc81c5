// Package usage reports token consumption against provider budgets.
package usage

import (
	"context"

	domusage "github.com/kailas-cloud/lectern/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	readers []WindowReader
}

// New creates a Service. Reports follow the order of readers.
func New(readers ...WindowReader) *Service {
	return &Service{readers: readers}
}

// GetReports builds one usage report per provider for the given period.
func (s *Service) GetReports(_ context.Context, period domusage.Period) []domusage.Report {
	reports := make([]domusage.Report, 0, len(s.readers))
	for _, r := range s.readers {
		w := r.Window(period)
		b := domusage.NewBudget(w.Limit, w.Remaining(), w.End.UnixMilli())
		reports = append(reports, domusage.NewReport(
			r.Provider(), period, w.Start.UnixMilli(), w.End.UnixMilli(), w.Used, b,
		))
	}
	return reports
}
