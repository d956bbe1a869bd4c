package error_notificator

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramInfra_Notify(t *testing.T) {
	sender := &fakeSender{}
	infra := NewTelegramInfra(sender, 42)

	err := infra.Notify(context.Background(), "line", errors.New("quota"), "user U1")
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "(line)")
	assert.Contains(t, sender.sent[0].Text, "quota")
	assert.Contains(t, sender.sent[0].Text, "user U1")
}

func TestTelegramInfra_SendError(t *testing.T) {
	sendErr := errors.New("network down")
	infra := NewTelegramInfra(&fakeSender{err: sendErr}, 42)

	err := infra.Notify(context.Background(), "line", errors.New("x"), "d")
	assert.ErrorIs(t, err, sendErr)
}

func TestService_ThrottlesAlerts(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(NewTelegramInfra(sender, 1), time.Hour, 2, zaptest.NewLogger(t).Sugar())

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Notify(context.Background(), "line", errors.New("x"), "d"))
	}
	assert.Len(t, sender.sent, 2)
}

func TestLogInfra_NeverFails(t *testing.T) {
	infra := NewLogInfra(zaptest.NewLogger(t).Sugar())
	assert.NoError(t, infra.Notify(context.Background(), "telegram", errors.New("x"), "details"))
}
