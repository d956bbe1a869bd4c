package ai

import (
	"context"
	"errors"

	"github.com/Vovarama1992/line_tutor/internal/conversation"
)

var (
	ErrEmptyResponse = errors.New("empty response from model")
	ErrNoModels      = errors.New("no candidate models configured")
)

type GenerateRequest struct {
	Model             string
	Turns             []conversation.Turn
	SystemInstruction string
	Temperature       float32
}

// Generator is one call to a generation backend.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Completer runs the candidate fallback for a working history.
type Completer interface {
	Complete(ctx context.Context, turns []conversation.Turn) Outcome
}
