package transcript

import (
	"context"
	"errors"
	"time"
)

var ErrArchiveDisabled = errors.New("transcript archive is disabled")

// Exchange is one archived user message with the reply that was sent.
type Exchange struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Channel   string    `json:"channel"`
	UserText  string    `json:"user_text"`
	ModelText string    `json:"model_text"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

type UserChannels struct {
	UserID   string   `json:"user_id"`
	Channels []string `json:"channels"`
}

// Mirror receives a copy of every exchange, e.g. an object storage bucket.
type Mirror interface {
	Put(ctx context.Context, ex Exchange) error
}

// Postgres repository
type Repo interface {
	Migrate(ctx context.Context) error
	Create(ctx context.Context, ex Exchange) (int64, error)
	// GetHistory returns the latest limit exchanges of a user, oldest first.
	GetHistory(ctx context.Context, userID string, limit int) ([]Exchange, error)
	ListUsers(ctx context.Context) ([]UserChannels, error)
}
