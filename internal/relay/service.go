package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Vovarama1992/line_tutor/internal/ai"
	"github.com/Vovarama1992/line_tutor/internal/conversation"
	"github.com/Vovarama1992/line_tutor/internal/error_notificator"
	"github.com/Vovarama1992/line_tutor/internal/metrics"
	"github.com/Vovarama1992/line_tutor/internal/transcript"
	"go.uber.org/zap"
)

type Service struct {
	store    conversation.Repo
	ai       ai.Completer
	notifier error_notificator.Notificator
	archive  Archiver
	log      *zap.SugaredLogger
}

func NewService(
	store conversation.Repo,
	completer ai.Completer,
	notifier error_notificator.Notificator,
	archive Archiver,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		store:    store,
		ai:       completer,
		notifier: notifier,
		archive:  archive,
		log:      log,
	}
}

// HandleMessage answers one inbound event. The store is committed before the
// reply goes out and is left untouched when no candidate produced a reply.
func (s *Service) HandleMessage(ctx context.Context, ev Event) error {
	start := time.Now()
	reply := SingleUse(ev.Reply)
	log := s.log.With("event", ev.ID, "channel", ev.Channel, "user", ev.UserID)

	// === 1. history + new user turn ===
	history := s.store.GetOrCreate(ev.UserID)
	userTurn := conversation.UserTurn(ev.Text)
	working := append(history, userTurn)
	log.Debugw("[relay] start", "history", len(history))

	// === 2. generation ===
	out := s.ai.Complete(ctx, working)
	answer, ok := out.Reply()

	if !ok {
		metrics.ObserveExchange(ev.Channel, metrics.ExchangeApology)
		log.Warnw("[relay] all candidates failed", "attempts", len(out.Attempts), "err", out.Err())

		sendErr := reply.Reply(ctx, Apology)
		s.notifyFailure(ctx, ev, out)
		if sendErr != nil {
			return fmt.Errorf("send apology: %w", sendErr)
		}
		return nil
	}

	// === 3. commit, then reply ===
	s.store.Commit(ev.UserID, userTurn, conversation.ModelTurn(answer))
	metrics.SetConversations(s.store.Len())
	metrics.ObserveExchange(ev.Channel, metrics.ExchangeReplied)

	if err := reply.Reply(ctx, answer); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	// === 4. archive ===
	// only exchanges the user actually received are archived
	s.archive.Record(ctx, transcript.Exchange{
		UserID:    ev.UserID,
		Channel:   ev.Channel,
		UserText:  ev.Text,
		ModelText: answer,
		Model:     out.Model,
		CreatedAt: time.Now(),
	})

	log.Infow("[relay] done", "model", out.Model, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Service) notifyFailure(ctx context.Context, ev Event, out ai.Outcome) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User: %s\nText: %q\n", ev.UserID, ev.Text)
	for _, a := range out.Attempts {
		fmt.Fprintf(&sb, "\n%s: %s", a.Model, ai.Diagnose(a.Err))
	}

	if err := s.notifier.Notify(ctx, ev.Channel, out.Err(), sb.String()); err != nil {
		s.log.Warnw("[relay] notify failed", "event", ev.ID, "err", err)
	}
}
