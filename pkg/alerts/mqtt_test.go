package alerts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/motion-guardian/pkg/alerts"
	"github.com/ogulcanaydogan/motion-guardian/pkg/model"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(completed bool, err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	token   mqtt.Token
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.qos = qos
	p.payload, _ = payload.([]byte)
	return p.token
}

func TestMQTTNotifier_Send(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(true, nil)}
	n := alerts.NewMQTTNotifierWithPublisher(pub, "mguard/alerts", 1, time.Second)
	assert.Equal(t, "mqtt", n.Name())

	receipt, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	require.NoError(t, err)
	assert.Equal(t, "mguard/alerts", receipt.Ack)
	assert.Equal(t, "mguard/alerts", pub.topic)
	assert.Equal(t, byte(1), pub.qos)

	var msg struct {
		Event  string     `json:"event"`
		Device string     `json:"device"`
		Delta  model.Vec3 `json:"delta"`
		Media  struct {
			Kind string `json:"kind"`
			Name string `json:"name"`
			Data string `json:"data"`
		} `json:"media"`
	}
	require.NoError(t, json.Unmarshal(pub.payload, &msg))
	assert.Equal(t, "motion_alert", msg.Event)
	assert.Equal(t, "garage-pi", msg.Device)
	assert.InDelta(t, 0.05, msg.Delta.X, 1e-9)
	assert.Equal(t, "photo", msg.Media.Kind)
	assert.Equal(t, "image_20260304_050607_01.jpg", msg.Media.Name)

	data, err := base64.StdEncoding.DecodeString(msg.Media.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte("media-bytes"), data)
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(true, errors.New("not connected"))}
	n := alerts.NewMQTTNotifierWithPublisher(pub, "mguard/alerts", 0, time.Second)

	_, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	require.Error(t, err)
	assert.ErrorIs(t, err, alerts.ErrTransport)
	assert.Contains(t, err.Error(), "not connected")
}

func TestMQTTNotifier_Timeout(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(false, nil)}
	n := alerts.NewMQTTNotifierWithPublisher(pub, "mguard/alerts", 1, 20*time.Millisecond)

	_, err := n.Send(context.Background(), testAlert(t, model.MediaPhoto))
	require.Error(t, err)
	assert.ErrorIs(t, err, alerts.ErrTransport)
	assert.Contains(t, err.Error(), "timeout")
}

func TestMQTTNotifier_CancelledContext(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(true, nil)}
	n := alerts.NewMQTTNotifierWithPublisher(pub, "mguard/alerts", 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := n.Send(ctx, testAlert(t, model.MediaPhoto))
	assert.ErrorIs(t, err, alerts.ErrTransport)
	assert.Empty(t, pub.topic)
}

func TestMQTTNotifier_MissingArtifact(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(true, nil)}
	n := alerts.NewMQTTNotifierWithPublisher(pub, "mguard/alerts", 1, time.Second)
	alert := testAlert(t, model.MediaPhoto)
	alert.Artifact.Path = alert.Artifact.Path + ".gone"

	_, err := n.Send(context.Background(), alert)
	require.Error(t, err)
	assert.ErrorIs(t, err, alerts.ErrArtifactUnavailable)
	assert.Empty(t, pub.topic)
}
