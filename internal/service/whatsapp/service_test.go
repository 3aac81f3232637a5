package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/service/commands"
)

type stubDispatcher struct {
	calls []models.Command
	reply string
	err   error
}

func (d *stubDispatcher) HandleCommand(_ context.Context, cmd models.Command, _ string) (string, error) {
	d.calls = append(d.calls, cmd)
	return d.reply, d.err
}

type sent struct{ to, body string }

type stubSender struct {
	sent []sent
	err  error
}

func (s *stubSender) SendText(_ context.Context, to, body string) (string, error) {
	s.sent = append(s.sent, sent{to, body})
	return "wamid", s.err
}

func payload(msgs ...models.InboundMessage) models.WebhookPayload {
	return models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			Changes: []models.WebhookChange{{Field: "messages", Value: models.WebhookValue{Messages: msgs}}},
		}},
	}
}

func text(id, from, body string) models.InboundMessage {
	return models.InboundMessage{ID: id, From: from, Type: "text", Text: &models.TextContent{Body: body}}
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := NewMetaWhatsAppService("secret", &stubDispatcher{}, &stubSender{}, zap.NewNop())

	challenge, err := svc.VerifyWebhookToken("subscribe", "secret", "1158201444")
	require.NoError(t, err)
	assert.Equal(t, "1158201444", challenge)

	_, err = svc.VerifyWebhookToken("subscribe", "wrong", "x")
	assert.Error(t, err)
	_, err = svc.VerifyWebhookToken("unsubscribe", "secret", "x")
	assert.Error(t, err)
	_, err = svc.VerifyWebhookToken("", "", "x")
	assert.Error(t, err)
}

func TestHandleWebhookRepliesToSender(t *testing.T) {
	dispatcher := &stubDispatcher{reply: "Shift 1: 10 cakes and 0 bread recorded, value 450.00."}
	sender := &stubSender{}
	svc := NewMetaWhatsAppService("secret", dispatcher, sender, zap.NewNop())

	require.NoError(t, svc.HandleWebhook(context.Background(), payload(text("m1", "233200000001", "/cakes 1 10"))))

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, models.CommandCakes, dispatcher.calls[0].Type)
	assert.Equal(t, []sent{{"233200000001", dispatcher.reply}}, sender.sent)
}

func TestHandleWebhookIgnoresDuplicatesAndMedia(t *testing.T) {
	dispatcher := &stubDispatcher{reply: "ok"}
	sender := &stubSender{}
	svc := NewMetaWhatsAppService("secret", dispatcher, sender, zap.NewNop())

	image := models.InboundMessage{ID: "m2", From: "233200000001", Type: "image"}
	msg := text("m1", "233200000001", "/stock")

	require.NoError(t, svc.HandleWebhook(context.Background(), payload(msg, image)))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload(msg)))

	assert.Len(t, dispatcher.calls, 1)
	assert.Len(t, sender.sent, 1)
}

func TestHandleWebhookUserErrorsAreAnswered(t *testing.T) {
	dispatcher := &stubDispatcher{err: &models.InsufficientStockError{Name: "Flour", Available: 3, Requested: 5}}
	sender := &stubSender{}
	svc := NewMetaWhatsAppService("secret", dispatcher, sender, zap.NewNop())

	require.NoError(t, svc.HandleWebhook(context.Background(), payload(text("m1", "233200000001", "/use 1 5 flour"))))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Not recorded: insufficient stock for Flour: available 3, requested 5", sender.sent[0].body)

	dispatcher.err = commands.ErrUnsupportedCommand
	require.NoError(t, svc.HandleWebhook(context.Background(), payload(text("m2", "233200000001", "/eggs"))))
	assert.Contains(t, sender.sent[1].body, "Unknown command.")
}

func TestHandleWebhookInternalErrorAllowsRetry(t *testing.T) {
	boom := errors.New("mongo unavailable")
	dispatcher := &stubDispatcher{err: boom}
	sender := &stubSender{}
	svc := NewMetaWhatsAppService("secret", dispatcher, sender, zap.NewNop())
	msg := text("m1", "233200000001", "/cakes 1 3")

	err := svc.HandleWebhook(context.Background(), payload(msg))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Something went wrong, please try again later.", sender.sent[0].body)

	dispatcher.err = nil
	dispatcher.reply = "recorded"
	require.NoError(t, svc.HandleWebhook(context.Background(), payload(msg)))
	assert.Len(t, dispatcher.calls, 2)
}

func TestHandleWebhookSendFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("token expired")}
	svc := NewMetaWhatsAppService("secret", &stubDispatcher{reply: "ok"}, sender, zap.NewNop())

	err := svc.HandleWebhook(context.Background(), payload(text("m1", "233200000001", "/stock")))
	assert.ErrorIs(t, err, sender.err)
}

func TestHandleWebhookRedeliversUnsentReply(t *testing.T) {
	dispatcher := &stubDispatcher{err: commands.ErrInvalidArguments}
	sender := &stubSender{err: errors.New("token expired")}
	svc := NewMetaWhatsAppService("secret", dispatcher, sender, zap.NewNop())
	msg := text("m1", "233200000001", "/cakes 1")

	err := svc.HandleWebhook(context.Background(), payload(msg))
	assert.ErrorIs(t, err, sender.err)

	sender.err = nil
	require.NoError(t, svc.HandleWebhook(context.Background(), payload(msg)))
	assert.Len(t, dispatcher.calls, 2)
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[1].body, "Not recorded:")
}

func TestDeliveryTrackerExpires(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tracker := newDeliveryTracker(time.Hour)
	tracker.now = func() time.Time { return now }

	assert.True(t, tracker.firstDelivery("m1"))
	assert.False(t, tracker.firstDelivery("m1"))
	assert.True(t, tracker.firstDelivery(""))

	now = now.Add(2 * time.Hour)
	assert.True(t, tracker.firstDelivery("m1"))

	tracker.forget("m1")
	assert.True(t, tracker.firstDelivery("m1"))
}
