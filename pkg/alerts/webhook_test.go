package alerts_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/motion-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

func testAlert(t *testing.T, kind model.MediaKind) alerts.Alert {
	t.Helper()
	name := "image_20260304_050607_01.jpg"
	if kind == model.MediaVideo {
		name = "video_20260304_050607.mp4"
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("media-bytes"), 0o644))

	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	return alerts.Alert{
		Device:      "garage-pi",
		TriggeredAt: ts,
		Delta:       model.Vec3{X: 0.05, Y: 0.01, Z: 0.0},
		Orientation: model.Orientation{Pitch: 1.5, Roll: 2.5, Yaw: 180},
		Artifact:    model.Artifact{Path: path, Kind: kind, CapturedAt: ts},
	}
}

func TestWebhookNotifier_Name(t *testing.T) {
	n := alerts.NewWebhookNotifier("https://example.com/webhook", "", time.Second)
	assert.Equal(t, "webhook", n.Name())
}

func TestWebhookNotifier_Send(t *testing.T) {
	var meta map[string]any
	var media []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Motion-Guardian/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, http.MethodPost, r.Method)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("alert")), &meta))

		f, hdr, err := r.FormFile("media")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "image_20260304_050607_01.jpg", hdr.Filename)
		media, _ = io.ReadAll(f)

		w.Header().Set("X-Request-Id", "req-7")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "", time.Second)
	receipt, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	require.NoError(t, err)

	assert.Equal(t, "req-7", receipt.Ack)
	assert.Equal(t, "motion_alert", meta["event"])
	assert.Equal(t, "2026-03-04T05:06:07Z", meta["timestamp"])
	assert.Equal(t, []byte("media-bytes"), media)
}

func TestWebhookNotifier_Send_WithHMAC(t *testing.T) {
	var signature string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Signature-256")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "test-secret", time.Second)
	_, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write(body)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), signature)
}

func TestWebhookNotifier_Send_NoHMAC(t *testing.T) {
	var hasSignature bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasSignature = r.Header.Get("X-Signature-256") != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "", time.Second)
	_, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	require.NoError(t, err)
	assert.False(t, hasSignature)
}

func TestWebhookNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "", time.Second)
	_, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	require.Error(t, err)
	assert.ErrorIs(t, err, alerts.ErrRemoteRejected)
	assert.Contains(t, err.Error(), "status 503")
}

func TestWebhookNotifier_Send_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	n := alerts.NewWebhookNotifier(url, "", time.Second)
	_, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	assert.ErrorIs(t, err, alerts.ErrTransport)
}

func TestWebhookNotifier_Send_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	n := alerts.NewWebhookNotifier(server.URL, "", 50*time.Millisecond)
	_, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	require.Error(t, err)
	assert.ErrorIs(t, err, alerts.ErrTransport)
	assert.NotErrorIs(t, err, alerts.ErrRemoteRejected)
}

func TestWebhookNotifier_Send_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n := alerts.NewWebhookNotifier(server.URL, "", 10*time.Second)
	_, err := n.Send(ctx, testAlert(t, model.MediaPhoto))
	assert.ErrorIs(t, err, alerts.ErrTransport)
}

func TestWebhookNotifier_Send_MissingArtifact(t *testing.T) {
	n := alerts.NewWebhookNotifier("http://127.0.0.1:1", "", time.Second)
	alert := testAlert(t, model.MediaPhoto)
	alert.Artifact.Path = filepath.Join(t.TempDir(), "gone.jpg")

	_, err := n.Send(context.Background(), alert)
	require.Error(t, err)
	assert.ErrorIs(t, err, alerts.ErrArtifactUnavailable)
	assert.NotErrorIs(t, err, alerts.ErrTransport)
}
