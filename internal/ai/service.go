package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Vovarama1992/line_tutor/internal/conversation"
	"github.com/Vovarama1992/line_tutor/internal/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Policy decides which successful candidate is kept.
type Policy string

const (
	// PolicyLastSuccess tries every candidate and keeps the last one that succeeded.
	PolicyLastSuccess Policy = "last_success"
	// PolicyFirstSuccess stops at the first candidate that succeeds.
	PolicyFirstSuccess Policy = "first_success"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyLastSuccess, nil
	case PolicyLastSuccess, PolicyFirstSuccess:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q", s)
	}
}

// ParseModels splits a comma separated model list, dropping blanks and
// case-insensitive duplicates while keeping the first spelling and order.
func ParseModels(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, part)
	}
	return out
}

// Attempt is the result of one candidate call.
type Attempt struct {
	Model    string
	Text     string
	Err      error
	Quota    bool
	Duration time.Duration
}

func (a Attempt) OK() bool { return a.Err == nil }

func (a Attempt) result() string {
	switch {
	case a.Err == nil:
		return metrics.ResultOK
	case a.Quota:
		return metrics.ResultQuota
	default:
		return metrics.ResultError
	}
}

// Outcome aggregates the attempts of one request.
type Outcome struct {
	Attempts []Attempt
	Model    string
	Text     string
	found    bool
}

// Reply returns the retained text, or false when no candidate succeeded.
func (o Outcome) Reply() (string, bool) {
	return o.Text, o.found
}

// Err combines the errors of all failed attempts.
func (o Outcome) Err() error {
	var err error
	for _, a := range o.Attempts {
		if a.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", a.Model, a.Err))
		}
	}
	return err
}

type Options struct {
	Models            []string
	SystemInstruction string
	Temperature       float32
	Policy            Policy
	// AttemptTimeout bounds a single candidate call; zero means no deadline.
	AttemptTimeout time.Duration
}

type AiService struct {
	generator Generator
	opts      Options
	log       *zap.SugaredLogger
}

func NewAiService(generator Generator, opts Options, log *zap.SugaredLogger) (*AiService, error) {
	if len(opts.Models) == 0 {
		return nil, ErrNoModels
	}
	if opts.Policy == "" {
		opts.Policy = PolicyLastSuccess
	}
	opts.Models = append([]string(nil), opts.Models...)
	return &AiService{
		generator: generator,
		opts:      opts,
		log:       log,
	}, nil
}

func (s *AiService) Models() []string {
	return append([]string(nil), s.opts.Models...)
}

func (s *AiService) Policy() Policy {
	return s.opts.Policy
}

// === main method ===

// Complete tries the candidate models in order. Errors never escape: every
// failure is recorded as an Attempt and the loop moves on to the next model.
func (s *AiService) Complete(ctx context.Context, turns []conversation.Turn) Outcome {
	start := time.Now()
	out := Outcome{Attempts: make([]Attempt, 0, len(s.opts.Models))}

	for _, model := range s.opts.Models {
		if err := ctx.Err(); err != nil {
			out.Attempts = append(out.Attempts, Attempt{Model: model, Err: err})
			continue
		}

		a := s.attempt(ctx, model, turns)
		out.Attempts = append(out.Attempts, a)
		metrics.ObserveAttempt(model, a.result(), a.Duration)

		if a.Err != nil {
			if a.Quota {
				s.log.Warnw("[ai] quota exhausted, trying next candidate", "model", model, "err", a.Err)
			} else {
				s.log.Warnw("[ai] generation failed, trying next candidate",
					"model", model, "err", a.Err, "diag", Diagnose(a.Err))
			}
			continue
		}

		// a later success overwrites an earlier one under last_success
		out.Model, out.Text, out.found = a.Model, a.Text, true
		if s.opts.Policy == PolicyFirstSuccess {
			break
		}
	}

	s.log.Infow("[ai] done",
		"attempts", len(out.Attempts),
		"model", out.Model,
		"ok", out.found,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out
}

func (s *AiService) attempt(ctx context.Context, model string, turns []conversation.Turn) Attempt {
	if s.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, GenerateRequest{
		Model:             model,
		Turns:             turns,
		SystemInstruction: s.opts.SystemInstruction,
		Temperature:       s.opts.Temperature,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}

	return Attempt{
		Model:    model,
		Text:     text,
		Err:      err,
		Quota:    err != nil && IsQuotaError(err),
		Duration: time.Since(start),
	}
}

var quotaMarkers = []string{"429", "resource_exhausted", "quota", "rate limit"}

// IsQuotaError reports whether err carries a quota or rate-limit marker.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Diagnose turns a backend error into a short operator hint.
func Diagnose(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, ErrEmptyResponse):
		return "Model returned no text."
	case errors.Is(err, context.DeadlineExceeded):
		return "Generation timed out."
	case errors.Is(err, context.Canceled):
		return "Request was cancelled."
	case IsQuotaError(err):
		return "Quota or rate limit exceeded."
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "api key"):
		return "Invalid or unauthorized API key."
	case strings.Contains(msg, "404"):
		return "Model not found."
	case strings.Contains(msg, "400"):
		return "Malformed generation request."
	case strings.Contains(msg, "500"), strings.Contains(msg, "503"):
		return "Upstream generation service error."
	}
	return "Unknown generation error: " + err.Error()
}
