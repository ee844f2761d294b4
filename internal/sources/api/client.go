// Package api reads payments, students and period roll-ups from the
// external REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"studydash/internal/core"
)

const (
	DefaultPageSize = 500
	DefaultTimeout  = 15 * time.Second

	// maxPages stops a backend that keeps reporting a larger total.
	maxPages = 10000
)

// StatusError is returned for non-2xx backend answers.
type StatusError struct {
	Status  int
	Message string
	Path    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s: %d %s", e.Path, e.Status, e.Message)
}

type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
}

type Option func(*Client)

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New returns a client for the backend rooted at baseURL, e.g.
// "https://backend.example.com/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: DefaultPageSize,
		http:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPayments pages through /payments, newest installment first.
func (c *Client) ListPayments(ctx context.Context) ([]core.Payment, error) {
	items, err := listAll[paymentWire](ctx, c, "/payments", url.Values{
		"sort_by":  {"installment_date"},
		"sort_dir": {"desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	out := make([]core.Payment, 0, len(items))
	for _, w := range items {
		out = append(out, w.toPayment())
	}
	return out, nil
}

func (c *Client) ListStudents(ctx context.Context) ([]core.Student, error) {
	items, err := listAll[studentWire](ctx, c, "/students", nil)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	out := make([]core.Student, 0, len(items))
	for _, w := range items {
		out = append(out, w.toStudent())
	}
	return out, nil
}

// ReadCurrentPeriod returns the backend's current-month roll-up and the one
// before it.
func (c *Client) ReadCurrentPeriod(ctx context.Context) (core.PeriodRollup, error) {
	var resp periodWire
	if err := c.get(ctx, "/dashboard/net-revenue/month/current", nil, &resp); err != nil {
		return core.PeriodRollup{}, fmt.Errorf("read current period: %w", err)
	}
	return core.PeriodRollup{
		Current:  resp.figuresWire.toFigures(),
		Previous: resp.LastPeriod.toFigures(),
	}, nil
}

type page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func listAll[T any](ctx context.Context, c *Client, path string, extra url.Values) ([]T, error) {
	var all []T
	offset := 0
	for i := 0; i < maxPages; i++ {
		q := url.Values{}
		for k, v := range extra {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var p page[T]
		if err := c.get(ctx, path, q, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		offset += len(p.Items)

		slog.DebugContext(ctx, "Backend page fetched", "path", path, "items", len(p.Items), "offset", offset, "total", p.Total)
		if len(p.Items) == 0 || offset >= p.Total {
			return all, nil
		}
	}
	return nil, fmt.Errorf("%s: more than %d pages", path, maxPages)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Message: errorMessage(body, resp.Status), Path: path}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func errorMessage(body []byte, fallback string) string {
	var shape struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &shape) == nil && shape.Error != "" {
		return shape.Error
	}
	return fallback
}

type paymentWire struct {
	ID                core.ID         `json:"id"`
	StudentID         core.ID         `json:"student_id"`
	InstallmentDate   string          `json:"installment_date"`
	InstallmentNumber looseInt        `json:"installment_number"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentType       string          `json:"payment_type"`
	ReceivedIn        string          `json:"payment_recieved_in"`
	SentFrom          string          `json:"payment_send_from"`
	Purpose           string          `json:"purpose"`
	Remarks           string          `json:"remarks"`
	CreatedAt         string          `json:"created_at"`
}

func (w paymentWire) toPayment() core.Payment {
	return core.Payment{
		ID:                w.ID,
		StudentID:         w.StudentID,
		Amount:            w.Amount,
		Date:              w.InstallmentDate,
		Type:              w.PaymentType,
		InstallmentNumber: int(w.InstallmentNumber),
		ReceivedIn:        w.ReceivedIn,
		SentFrom:          w.SentFrom,
		Purpose:           w.Purpose,
		Remarks:           w.Remarks,
		CreatedAt:         w.CreatedAt,
	}
}

type studentWire struct {
	ID                core.ID             `json:"id"`
	EnrollmentNumber  looseString         `json:"enrollment_number"`
	Name              string              `json:"name"`
	Email             string              `json:"email"`
	Phone             looseString         `json:"phone"`
	Category          string              `json:"category"`
	Zone              string              `json:"zone"`
	SourceOfStudent   string              `json:"source_of_student"`
	IntakeYear        looseString         `json:"intake_year"`
	CreatedAt         string              `json:"created_at"`
	TotalAmount       decimal.NullDecimal `json:"total_amount"`
	ReceivedAmount    decimal.NullDecimal `json:"received_amount"`
	RecievedAmount    decimal.NullDecimal `json:"recieved_amount"`
	TotalPayoutAmount decimal.NullDecimal `json:"total_payout_amount"`
	NetAmount         decimal.NullDecimal `json:"net_amount"`
}

func (w studentWire) toStudent() core.Student {
	received := w.RecievedAmount
	if !received.Valid {
		received = w.ReceivedAmount
	}
	return core.Student{
		ID:               w.ID,
		EnrollmentNumber: string(w.EnrollmentNumber),
		Name:             w.Name,
		Email:            w.Email,
		Phone:            string(w.Phone),
		Category:         w.Category,
		Zone:             w.Zone,
		Source:           w.SourceOfStudent,
		IntakeYear:       string(w.IntakeYear),
		CreatedAt:        w.CreatedAt,
		TotalAmount:      w.TotalAmount,
		ReceivedAmount:   received,
		PayoutAmount:     w.TotalPayoutAmount,
		NetAmount:        w.NetAmount,
	}
}

type figuresWire struct {
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	TotalPayout   decimal.Decimal `json:"totalPayout"`
	NetRevenue    decimal.Decimal `json:"netRevenue"`
	TotalStudents int             `json:"totalStudents"`
}

func (w figuresWire) toFigures() core.PeriodFigures {
	return core.PeriodFigures{
		Received: w.TotalRevenue,
		Payout:   w.TotalPayout,
		Net:      w.NetRevenue,
		Students: w.TotalStudents,
	}
}

type periodWire struct {
	figuresWire
	LastPeriod figuresWire `json:"lastPeriod"`
}

// looseString accepts a JSON string, number or null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		*s = looseString(b)
	}
	return nil
}

// looseInt accepts a JSON number, numeric string or null.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	var s looseString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if strings.TrimSpace(string(s)) == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return fmt.Errorf("installment number %q: %w", s, err)
	}
	*n = looseInt(v)
	return nil
}
