package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/bakery/internal/config"
)

// MaxTextLength is the longest text body the Cloud API accepts.
const MaxTextLength = 4096

// Sender sends one text message to one recipient.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// CloudClient talks to the WhatsApp Cloud API with resty.
type CloudClient struct {
	http          *resty.Client
	phoneNumberID string
}

// NewClient builds a Cloud API client from the WhatsApp settings.
func NewClient(cfg config.WhatsAppConfig) *CloudClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &CloudClient{http: client, phoneNumberID: cfg.PhoneNumberID}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends body to the phone number to and returns the message id.
func (c *CloudClient) SendText(ctx context.Context, to, body string) (string, error) {
	payload := textPayload{MessagingProduct: "whatsapp", To: to, Type: "text"}
	payload.Text.Body = body

	result := new(sendResponse)
	apiErr := new(errorResponse)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(c.phoneNumberID + "/messages")
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.IsError() {
		code := resp.StatusCode()
		if apiErr.Error.Code != 0 {
			code = apiErr.Error.Code
		}
		return "", fmt.Errorf("whatsapp api error: code=%d, message=%s", code, apiErr.Error.Message)
	}

	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}

// Notifier delivers text reports to one fixed recipient, splitting reports
// longer than one message on line boundaries.
type Notifier struct {
	sender    Sender
	recipient string
}

// NewNotifier sends every report to recipient through sender.
func NewNotifier(sender Sender, recipient string) *Notifier {
	return &Notifier{sender: sender, recipient: recipient}
}

// Notify sends message to the configured recipient.
func (n *Notifier) Notify(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("empty report")
	}
	for _, part := range SplitMessage(message, MaxTextLength) {
		if _, err := n.sender.SendText(ctx, n.recipient, part); err != nil {
			return err
		}
	}
	return nil
}

// SplitMessage cuts text into parts of at most limit bytes, breaking after
// newlines when possible.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
		} else {
			cut++
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
