package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/shopspring/decimal"

	applog "studydash/internal/log"
	"studydash/internal/middleware/trace"
	"studydash/internal/report"
	"studydash/internal/revenue"
	"studydash/internal/sources"
)

var templateFuncs = template.FuncMap{
	"amount": formatAmount,
	"bars":   bars,
	"dict":   dict,
}

// dict builds a map from alternating keys and values for sub-templates.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict needs key/value pairs")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

// bar is a series point with its magnitude as a percentage of the largest.
type bar struct {
	revenue.Point
	Width int64
}

func bars(points []revenue.Point) []bar {
	peak := decimal.Zero
	for _, p := range points {
		if a := p.Net.Abs(); a.GreaterThan(peak) {
			peak = a
		}
	}
	out := make([]bar, len(points))
	for i, p := range points {
		out[i] = bar{Point: p}
		if !peak.IsZero() {
			out[i].Width = p.Net.Abs().Div(peak).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		}
	}
	return out
}

// dashboardPage is the data of templates/dashboard.html.
type dashboardPage struct {
	Dashboard revenue.Dashboard
	Error     string
	Month     string
	Year      int
	Net       string
	Rank      string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.templates == nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	page := dashboardPage{}
	opts, err := ParseDashboardOptions(r.URL.Query(), s.dashboards.Options())
	if err != nil {
		status = http.StatusBadRequest
		page.Error = err.Error()
	} else if page.Dashboard, err = s.dashboards.DashboardWith(ctx, opts); err != nil {
		s.logFetchError(r, err)
		status = http.StatusBadGateway
		page.Error = "Could not load revenue data: " + err.Error()
	} else {
		page.Month = page.Dashboard.ZonesMonth.Window.Key()
		page.Year = page.Dashboard.ZonesYear.Window.Year
		page.Net = page.Dashboard.ZonesMonth.Net
		page.Rank = page.Dashboard.ZonesMonth.Rank
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard.html", page); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Dashboard template execution failed", applog.FieldError, err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// dashboardFor computes the dashboard with the request's overrides. It
// writes the error response itself and reports false when it did.
func (s *Server) dashboardFor(w http.ResponseWriter, r *http.Request) (revenue.Dashboard, bool) {
	opts, err := ParseDashboardOptions(r.URL.Query(), s.dashboards.Options())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return revenue.Dashboard{}, false
	}
	d, err := s.dashboards.DashboardWith(r.Context(), opts)
	if err != nil {
		s.logFetchError(r, err)
		BadGatewayError(err.Error()).Write(w)
		return revenue.Dashboard{}, false
	}
	return d, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.dashboardFor(w, r); ok {
		NewJSONResponse().Data(d).Write(w)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.dashboardFor(w, r); ok {
		NewJSONResponse().Data(d.Summary).Field("generatedAt", d.GeneratedAt).Write(w)
	}
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardFor(w, r)
	if !ok {
		return
	}
	series := map[string][]revenue.Point{
		"monthly": d.Monthly,
		"rolling": d.Rolling,
		"yearly":  d.Yearly,
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		points, found := series[kind]
		if !found {
			BadRequestError("invalid kind " + kind + ": want monthly, rolling or yearly").Write(w)
			return
		}
		series = map[string][]revenue.Point{kind: points}
	}
	NewJSONResponse().Data(series).Field("generatedAt", d.GeneratedAt).Write(w)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	if d, ok := s.dashboardFor(w, r); ok {
		NewJSONResponse().Data(map[string]any{
			"month":          d.ZonesMonth,
			"year":           d.ZonesYear,
			"studentsByZone": d.StudentsByZone,
		}).Field("generatedAt", d.GeneratedAt).Write(w)
	}
}

// handleSnapshot returns the worker's last stored dashboard as computed,
// without recomputing it.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		NotImplementedError("snapshots are not stored by this backend").Write(w)
		return
	}
	snap, err := s.snapshots.LatestSnapshot(r.Context())
	switch {
	case errors.Is(err, sources.ErrNoSnapshot):
		NotFoundError("no dashboard snapshot stored yet").Write(w)
		return
	case err != nil:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Failed to read dashboard snapshot", err, applog.ComponentHTTP, applog.OpFetch, nil)
		InternalServerError("could not read snapshot").Field("requestId", trace.GetRequestID(r.Context())).Write(w)
		return
	}
	NewJSONResponse().
		Data(json.RawMessage(snap.Payload)).
		Field("id", snap.ID).
		Field("generatedAt", snap.GeneratedAt).
		Field("reason", snap.Reason).
		Write(w)
}

func (s *Server) handleRevenueXLSX(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dashboardFor(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, d); err != nil {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Failed to build XLSX report", err, applog.ComponentReport, applog.OpExport, nil)
		InternalServerError("could not build report").Field("requestId", trace.GetRequestID(r.Context())).Write(w)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", attachmentName("revenue-"+d.GeneratedAt.Format("2006-01-02")+".xlsx"))
	_, _ = buf.WriteTo(w)
}

func (s *Server) logFetchError(r *http.Request, err error) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), "Failed to fetch revenue data", err, applog.ComponentDashboard, applog.OpFetch,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
}
