package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"studydash/internal/csvio"
	applog "studydash/internal/log"
	"studydash/internal/middleware/trace"
	"studydash/internal/services"
	"studydash/internal/sources"
)

func (s *Server) handleImportPayments(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, "payments", func(ctx context.Context, text string) (services.ImportResult, error) {
		return s.importer.ImportPayments(ctx, text)
	})
}

func (s *Server) handleImportStudents(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, "students", func(ctx context.Context, text string) (services.ImportResult, error) {
		return s.importer.ImportStudents(ctx, text)
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, entity string, run func(context.Context, string) (services.ImportResult, error)) {
	if s.importer == nil {
		NotImplementedError("import is not supported by this backend").Write(w)
		return
	}
	text, err := DecodeImportBody(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	result, err := run(r.Context(), text)
	switch {
	case errors.Is(err, sources.ErrReadOnly):
		NotImplementedError("import is not supported by this backend").Write(w)
		return
	case errors.Is(err, services.ErrInvalidCSV):
		BadRequestError(err.Error()).Write(w)
		return
	case err != nil:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "CSV import failed", err, applog.ComponentImport, applog.OpImport,
				applog.NewFields().WithImport(entity, 0, 0))
		InternalServerError("import failed: "+err.Error()).Field("requestId", trace.GetRequestID(r.Context())).Write(w)
		return
	}

	errs := result.Errors
	if errs == nil {
		errs = []csvio.RowError{}
	}
	NewJSONResponse().
		Field("inserted", result.Inserted).
		Field("failed", result.Failed).
		Field("errors", errs).
		Write(w)
}

func (s *Server) handleExportPayments(w http.ResponseWriter, r *http.Request) {
	f, err := ParseExportFilter(r.URL.Query(), s.dashboards.Calendar().Location)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	payments, err := s.dashboards.Payments(r.Context(), f)
	if err != nil {
		s.logFetchError(r, err)
		BadGatewayError(err.Error()).Write(w)
		return
	}
	writeCSV(w, r, s.exportName("payments"), func(out io.Writer) error {
		return csvio.WritePayments(out, payments)
	})
}

func (s *Server) handleExportStudents(w http.ResponseWriter, r *http.Request) {
	f, err := ParseExportFilter(r.URL.Query(), s.dashboards.Calendar().Location)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	students, err := s.dashboards.Students(r.Context(), f)
	if err != nil {
		s.logFetchError(r, err)
		BadGatewayError(err.Error()).Write(w)
		return
	}
	writeCSV(w, r, s.exportName("students"), func(out io.Writer) error {
		return csvio.WriteStudents(out, students)
	})
}

func handleSamplePayments(w http.ResponseWriter, r *http.Request) {
	writeCSV(w, r, "payments-sample.csv", csvio.SamplePayments)
}

func handleSampleStudents(w http.ResponseWriter, r *http.Request) {
	writeCSV(w, r, "students-sample.csv", csvio.SampleStudents)
}

func (s *Server) exportName(entity string) string {
	return entity + "-" + s.dashboards.Calendar().Now.Format("2006-01-02") + ".csv"
}

// writeCSV renders into a buffer first so a failure can still answer 500.
func writeCSV(w http.ResponseWriter, r *http.Request, filename string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Failed to write CSV", err, applog.ComponentHTTP, applog.OpExport, nil)
		InternalServerError("could not write csv").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachmentName(filename))
	_, _ = buf.WriteTo(w)
}
