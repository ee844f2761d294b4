// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of query strings and request
// bodies shared by the dashboard, CSV and report handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"studydash/internal/core"
	"studydash/internal/revenue"
	"studydash/internal/sources"
)

// maxImportBytes caps CSV upload bodies.
const maxImportBytes = 10 << 20

var errEmptyCSV = errors.New("csv body is empty")

// ParseDashboardOptions applies query overrides to base:
//
//	month=YYYY-MM     zone breakdown month
//	year=YYYY         zone breakdown year
//	net=signed|clamped
//	rank=net|received
//	rolling=N         rolling window length, 1 to 36
//	mom=payments|backend
//
// Unknown parameters are ignored; malformed known ones are an error.
func ParseDashboardOptions(query url.Values, base revenue.Options) (revenue.Options, error) {
	opts := base
	var problems []string

	if v := strings.TrimSpace(query.Get("month")); v != "" {
		w, err := revenue.ParseWindow(v)
		if err != nil || !w.IsMonth() {
			problems = append(problems, fmt.Sprintf("invalid month %q: want YYYY-MM", v))
		} else {
			opts.ZoneMonth = w
		}
	}
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		w, err := revenue.ParseWindow(v)
		if err != nil || w.IsMonth() {
			problems = append(problems, fmt.Sprintf("invalid year %q: want YYYY", v))
		} else {
			opts.ZoneYear = w.Year
		}
	}
	if v := strings.TrimSpace(query.Get("net")); v != "" {
		p, err := revenue.ParseNetPolicy(v)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			opts.ZoneNet = p
		}
	}
	if v := strings.TrimSpace(query.Get("rank")); v != "" {
		r, err := revenue.ParseRankBy(v)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			opts.ZoneRank = r
		}
	}
	if v := strings.TrimSpace(query.Get("rolling")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 36 {
			problems = append(problems, fmt.Sprintf("invalid rolling %q: want 1 to 36", v))
		} else {
			opts.RollingMonths = n
		}
	}
	if v := strings.TrimSpace(query.Get("mom")); v != "" {
		m, err := revenue.ParseMoMSource(v)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			opts.Summary.MoMSource = m
		}
	}

	if len(problems) > 0 {
		return base, errors.New(strings.Join(problems, "; "))
	}
	return opts, nil
}

// ParseExportFilter reads student_id, created_from and created_to. Dates
// are YYYY-MM-DD calendar days in loc and both bounds are inclusive.
func ParseExportFilter(query url.Values, loc *time.Location) (sources.Filter, error) {
	f := sources.Filter{StudentID: core.ID(sanitizeInput(query.Get("student_id")))}

	parse := func(name string) (time.Time, error) {
		v := strings.TrimSpace(query.Get(name))
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s %q: want YYYY-MM-DD", name, v)
		}
		return t, nil
	}

	var err error
	if f.CreatedFrom, err = parse("created_from"); err != nil {
		return sources.Filter{}, err
	}
	if f.CreatedTo, err = parse("created_to"); err != nil {
		return sources.Filter{}, err
	}
	if !f.CreatedFrom.IsZero() && !f.CreatedTo.IsZero() && f.CreatedTo.Before(f.CreatedFrom) {
		return sources.Filter{}, errors.New("created_to is before created_from")
	}
	return f, nil
}

// importRequest is the JSON body of the import routes.
type importRequest struct {
	CSV string `json:"csv"`
}

// DecodeImportBody returns the CSV text of an import request. JSON bodies
// carry it in the "csv" member; text/csv bodies are taken as is.
func DecodeImportBody(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxImportBytes {
		return "", fmt.Errorf("body exceeds %d bytes", maxImportBytes)
	}

	var text string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv", "text/plain":
		text = string(body)
	default:
		var req importRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		text = req.CSV
	}

	if strings.TrimSpace(text) == "" {
		return "", errEmptyCSV
	}
	return text, nil
}
