package error_notificator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Service throttles alerts so a quota outage produces a trickle, not a flood.
type Service struct {
	infra   Notificator
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewService allows one alert per interval with the given burst.
func NewService(infra Notificator, interval time.Duration, burst int, log *zap.SugaredLogger) *Service {
	if burst < 1 {
		burst = 1
	}
	return &Service{
		infra:   infra,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		log:     log,
	}
}

func (s *Service) Notify(ctx context.Context, channel string, err error, details string) error {
	if !s.limiter.Allow() {
		s.log.Debugw("[error_notificator] alert suppressed", "channel", channel, "err", err)
		return nil
	}
	return s.infra.Notify(ctx, channel, err, details)
}
