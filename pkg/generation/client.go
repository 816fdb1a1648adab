package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrMalformedResponse marks a collaborator reply that does not match the contract.
var ErrMalformedResponse = errors.New("malformed generation response")

// TeacherSpec is a teacher and the subjects they teach.
type TeacherSpec struct {
	Name     string   `json:"name"`
	Subjects []string `json:"subjects"`
}

// SubjectTarget asks for a number of weekly periods of a subject.
type SubjectTarget struct {
	Name    string `json:"name"`
	Periods int    `json:"periods"`
}

// Request is the payload sent to the generation collaborator.
type Request struct {
	ClassName            string          `json:"className"`
	Subjects             []string        `json:"subjects"`
	Teachers             []TeacherSpec   `json:"teachers"`
	SubjectPeriodTargets []SubjectTarget `json:"subjectPeriodTargets"`
	FreeformRules        string          `json:"freeformRules"`
}

// SlotSubject places a subject on a "Day-Period" slot.
type SlotSubject struct {
	Slot    string `json:"slot" validate:"required"`
	Subject string `json:"subject" validate:"required"`
}

// SlotTeacher places a teacher on a "Day-Period" slot.
type SlotTeacher struct {
	Slot    string `json:"slot" validate:"required"`
	Teacher string `json:"teacher" validate:"required"`
}

// TeacherLoad is the collaborator's own load figure for a teacher.
type TeacherLoad struct {
	TeacherName  string `json:"teacherName" validate:"required"`
	TotalPeriods *int   `json:"totalPeriods" validate:"required,min=0"`
}

// Response is the collaborator's candidate week. Every list is required; empty lists are allowed.
type Response struct {
	Subjects           []string      `json:"subjects" validate:"required"`
	Timetable          []SlotSubject `json:"timetable" validate:"required,dive"`
	TeacherAssignments []SlotTeacher `json:"teacherAssignments" validate:"required,dive"`
	Suggestions        []string      `json:"suggestions" validate:"required"`
	TeacherLoad        []TeacherLoad `json:"teacherLoad" validate:"required,dive"`
}

// Generator produces candidate timetables.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Config configures the HTTP client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client calls the generation collaborator over HTTP.
type Client struct {
	url       string
	apiKey    string
	http      *http.Client
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClient builds a generation client.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		http:      httpClient,
		validator: validator.New(),
		logger:    logger,
	}
}

const maxResponseBytes = 4 << 20

// Generate posts req and returns a validated response.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.url == "" {
		return nil, fmt.Errorf("generation url not configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generation service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read generation response: %w", err)
	}
	c.logger.Debug("generation response received",
		zap.String("class", req.ClassName),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.Int("bytes", len(raw)),
	)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("generation service returned status %d", resp.StatusCode)
	}

	return c.decode(raw)
}

func (c *Client) decode(raw []byte) (*Response, error) {
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := c.validator.Struct(out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}
