package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/service/commands"
	client "github.com/mamadbah2/bakery/pkg/clients/whatsapp"
)

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
}

// MetaWhatsAppService runs supervisor commands received through the WhatsApp
// Cloud API webhook and replies to the sender.
type MetaWhatsAppService struct {
	verifyToken string
	dispatcher  commands.Dispatcher
	sender      client.Sender
	deliveries  *deliveryTracker
	logger      *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(verifyToken string, dispatcher commands.Dispatcher, sender client.Sender, logger *zap.Logger) *MetaWhatsAppService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetaWhatsAppService{
		verifyToken: verifyToken,
		dispatcher:  dispatcher,
		sender:      sender,
		deliveries:  newDeliveryTracker(24 * time.Hour),
		logger:      logger,
	}
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if verifyToken != s.verifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads. The first failure is
// returned after every message has been attempted.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	text := msg.MessageText()
	if strings.TrimSpace(text) == "" {
		s.logger.Debug("ignoring message without text", zap.String("message_id", msg.ID), zap.String("type", msg.Type))
		return nil
	}
	if !s.deliveries.firstDelivery(msg.ID) {
		s.logger.Info("duplicate delivery ignored", zap.String("message_id", msg.ID))
		return nil
	}

	cmd := models.ParseCommand(text)
	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)),
		zap.Strings("args", cmd.Args))

	reply, cmdErr := s.dispatcher.HandleCommand(ctx, cmd, msg.From)
	if cmdErr != nil {
		reply = replyForError(cmdErr)
		if !userError(cmdErr) {
			s.deliveries.forget(msg.ID)
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.sender.SendText(sendCtx, msg.From, reply); err != nil {
		s.deliveries.forget(msg.ID)
		return errors.Join(cmdErr, fmt.Errorf("reply to %s: %w", msg.From, err))
	}
	if cmdErr != nil && !userError(cmdErr) {
		return cmdErr
	}
	return nil
}

// userError reports whether err stems from what the sender typed.
func userError(err error) bool {
	return errors.Is(err, commands.ErrUnsupportedCommand) ||
		errors.Is(err, commands.ErrInvalidArguments) ||
		errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInsufficientStock)
}

func replyForError(err error) string {
	switch {
	case errors.Is(err, commands.ErrUnsupportedCommand):
		return "Unknown command.\n" + commands.HelpText
	case userError(err):
		return "Not recorded: " + err.Error()
	default:
		return "Something went wrong, please try again later."
	}
}
