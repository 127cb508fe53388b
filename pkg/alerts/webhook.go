package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// WebhookNotifier uploads artifacts to a generic HTTP endpoint as multipart/form-data.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, requests are signed with HMAC-SHA256 over the full body.
func NewWebhookNotifier(url, secret string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) (Receipt, error) {
	body, contentType, err := w.encode(alert)
	if err != nil {
		return Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "Motion-Guardian/1.0")

	if w.secret != "" {
		sig := computeHMAC(body, []byte(w.secret))
		req.Header.Set("X-Signature-256", "sha256="+sig)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: send webhook alert: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("%w: webhook returned status %d", ErrRemoteRejected, resp.StatusCode)
	}

	ack := resp.Header.Get("X-Request-Id")
	if ack == "" {
		ack = resp.Status
	}
	return Receipt{Ack: ack}, nil
}

// encode builds the multipart body: an "alert" JSON field and a "media" file part.
func (w *WebhookNotifier) encode(alert Alert) ([]byte, string, error) {
	f, err := os.Open(alert.Artifact.Path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	defer f.Close()

	meta, err := json.Marshal(webhookPayload{
		Event:     "motion_alert",
		Timestamp: alert.TriggeredAt.UTC().Format(time.RFC3339),
		Caption:   alert.Caption(),
		Alert:     alert,
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("alert", string(meta)); err != nil {
		return nil, "", fmt.Errorf("write alert field: %w", err)
	}
	part, err := mw.CreateFormFile("media", filepath.Base(alert.Artifact.Path))
	if err != nil {
		return nil, "", fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

type webhookPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Caption   string `json:"caption"`
	Alert     Alert  `json:"alert"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
