package transcript

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Service archives exchanges. A nil repo disables the archive: writes become
// no-ops and reads return ErrArchiveDisabled.
type Service struct {
	repo   Repo
	mirror Mirror
	log    *zap.SugaredLogger
}

func NewService(repo Repo, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log}
}

// WithMirror copies every recorded exchange to m as well.
func (s *Service) WithMirror(m Mirror) *Service {
	s.mirror = m
	return s
}

func (s *Service) Enabled() bool {
	return s != nil && s.repo != nil
}

// Record stores an exchange. Failures are logged and swallowed.
func (s *Service) Record(ctx context.Context, ex Exchange) {
	if s == nil {
		return
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	if s.repo != nil {
		id, err := s.repo.Create(ctx, ex)
		if err != nil {
			s.log.Errorw("[transcript] archive write failed", "user", ex.UserID, "channel", ex.Channel, "err", err)
		} else {
			ex.ID = id
			s.log.Debugw("[transcript] archived", "id", id, "user", ex.UserID)
		}
	}

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, ex); err != nil {
			s.log.Errorw("[transcript] mirror write failed", "user", ex.UserID, "channel", ex.Channel, "err", err)
		}
	}
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]Exchange, error) {
	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	out, err := s.repo.GetHistory(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return out, nil
}

func (s *Service) Users(ctx context.Context) ([]UserChannels, error) {
	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}
	out, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}
