package alerts

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

// DefaultTelegramAPI is the public Bot API endpoint.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramNotifier uploads artifacts to a chat through the Telegram Bot API.
type TelegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
}

// NewTelegramNotifier creates a Bot API notifier. Every request is bounded by timeout.
func NewTelegramNotifier(apiURL, token, chatID string, timeout time.Duration) *TelegramNotifier {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "Motion-Guardian/1.0")

	return &TelegramNotifier{
		client: client,
		token:  token,
		chatID: chatID,
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) (Receipt, error) {
	method, field := "sendPhoto", "photo"
	if alert.Artifact.Kind == model.MediaVideo {
		method, field = "sendVideo", "video"
	}

	if _, err := os.Stat(alert.Artifact.Path); err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}

	var out telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"caption": alert.Caption(),
		}).
		SetFile(field, alert.Artifact.Path).
		SetResult(&out).
		SetError(&out).
		Post("/bot" + t.token + "/" + method)
	if err != nil {
		// The request URL embeds the bot token.
		return Receipt{}, fmt.Errorf("%w: telegram %s: %s", ErrTransport, method, t.redact(err.Error()))
	}

	if resp.IsError() || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = resp.Status()
		}
		return Receipt{}, fmt.Errorf("%w: telegram %s returned status %d: %s", ErrRemoteRejected, method, resp.StatusCode(), desc)
	}

	return Receipt{Ack: strconv.FormatInt(out.Result.MessageID, 10)}, nil
}

func (t *TelegramNotifier) redact(s string) string {
	if t.token == "" {
		return s
	}
	return strings.ReplaceAll(s, t.token, "<redacted>")
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}
