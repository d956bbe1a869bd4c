package telegram

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Vovarama1992/line_tutor/internal/relay"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	Channel      = "telegram"
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// Sender is the part of *tgbotapi.BotAPI used for replies.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type MessageHandler interface {
	HandleMessage(ctx context.Context, ev relay.Event) error
}

// WebhookHandler receives Telegram updates pushed by setWebhook.
type WebhookHandler struct {
	secret string
	bot    Sender
	relay  MessageHandler
	log    *zap.SugaredLogger
}

func NewWebhookHandler(secret string, bot Sender, relay MessageHandler, log *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{
		secret: secret,
		bot:    bot,
		relay:  relay,
		log:    log,
	}
}

// UserID namespaces Telegram users so they never collide with LINE ids.
func UserID(telegramID int64) string {
	return "tg:" + strconv.FormatInt(telegramID, 10)
}

// POST /telegram/webhook
func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warnw("[telegram] secret token mismatch", "remote", r.RemoteAddr)
			http.Error(w, "invalid secret token", http.StatusBadRequest)
			return
		}
	}

	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	ev := relay.Event{
		ID:      uuid.NewString(),
		Channel: Channel,
		UserID:  UserID(msg.From.ID),
		Text:    msg.Text,
		Reply:   h.replier(msg.Chat.ID, msg.MessageID),
	}
	if err := h.relay.HandleMessage(r.Context(), ev); err != nil {
		h.log.Errorw("[telegram] handle message failed", "event", ev.ID, "update", upd.UpdateID, "err", err)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) replier(chatID int64, messageID int) relay.Replier {
	return relay.ReplyFunc(func(_ context.Context, text string) error {
		out := tgbotapi.NewMessage(chatID, text)
		out.ReplyToMessageID = messageID
		if _, err := h.bot.Send(out); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	})
}
