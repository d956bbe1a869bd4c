package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Vovarama1992/line_tutor/internal/relay"
	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"go.uber.org/zap"
)

const Channel = "line"

// ReplyClient is the part of *messaging_api.MessagingApiAPI used for replies.
type ReplyClient interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

type MessageHandler interface {
	HandleMessage(ctx context.Context, ev relay.Event) error
}

// Handler serves the LINE webhook: it verifies the signature, turns text
// message events into relay events and replies through the reply token.
type Handler struct {
	channelSecret string
	bot           ReplyClient
	relay         MessageHandler
	log           *zap.SugaredLogger
}

func NewHandler(channelSecret string, bot ReplyClient, relay MessageHandler, log *zap.SugaredLogger) *Handler {
	return &Handler{
		channelSecret: channelSecret,
		bot:           bot,
		relay:         relay,
		log:           log,
	}
}

// POST /callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	cb, err := webhook.ParseRequest(h.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.log.Warnw("[line] invalid signature", "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}
		h.log.Errorw("[line] parse webhook failed", "err", err)
		http.Error(w, "cannot parse webhook", http.StatusInternalServerError)
		return
	}

	for _, event := range cb.Events {
		e, ok := event.(webhook.MessageEvent)
		if !ok {
			continue
		}
		msg, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			continue
		}
		userID := sourceUserID(e.Source)
		if userID == "" {
			h.log.Debugw("[line] message without user id skipped")
			continue
		}

		ev := relay.Event{
			ID:      uuid.NewString(),
			Channel: Channel,
			UserID:  userID,
			Text:    msg.Text,
			Reply:   h.replier(e.ReplyToken),
		}
		if err := h.relay.HandleMessage(r.Context(), ev); err != nil {
			h.log.Errorw("[line] handle message failed", "event", ev.ID, "user", userID, "err", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) replier(replyToken string) relay.Replier {
	return relay.ReplyFunc(func(_ context.Context, text string) error {
		_, err := h.bot.ReplyMessage(&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages: []messaging_api.MessageInterface{
				messaging_api.TextMessage{Text: text},
			},
		})
		if err != nil {
			return fmt.Errorf("line reply: %w", err)
		}
		return nil
	})
}

func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}
