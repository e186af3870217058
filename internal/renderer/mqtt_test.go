package renderer

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/lumen/internal/model"
	"github.com/Nixie-Tech-LLC/lumen/internal/playback"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return qos }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 1 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

type fakeConn struct {
	published    map[string][][]byte
	handlers     map[string]mqtt.MessageHandler
	publishErr   error
	disconnected bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{published: map[string][][]byte{}, handlers: map[string]mqtt.MessageHandler{}}
}

func (c *fakeConn) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.published[topic] = append(c.published[topic], payload.([]byte))
	return doneToken{err: c.publishErr}
}

func (c *fakeConn) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.handlers[topic] = cb
	return doneToken{}
}

func (c *fakeConn) Unsubscribe(topics ...string) mqtt.Token {
	for _, t := range topics {
		delete(c.handlers, t)
	}
	return doneToken{}
}

func (c *fakeConn) Disconnect(uint) { c.disconnected = true }

func (c *fakeConn) deliver(topic, payload string) {
	c.handlers[topic](nil, message{topic: topic, payload: []byte(payload)})
}

func TestBridgePresent(t *testing.T) {
	conn := newFakeConn()
	b := NewBridge(conn, "tv-1", zerolog.Nop())

	err := b.Present(playback.Presentation{
		Token:      7,
		PlaylistID: "p1",
		Index:      2,
		Media:      model.MediaItem{ID: "yt", Type: model.MediaVideo, URL: "https://youtu.be/dQw4w9WgXcQ"},
		Source:     model.SourceYouTube,
		YouTubeID:  "dQw4w9WgXcQ",
		Duration:   15 * time.Second,
	})
	require.NoError(t, err)

	msgs := conn.published["tv/tv-1/commands"]
	require.Len(t, msgs, 1)
	var cmd Command
	require.NoError(t, json.Unmarshal(msgs[0], &cmd))
	assert.Equal(t, "present", cmd.Type)
	assert.Equal(t, uint64(7), cmd.Token)
	assert.Equal(t, "p1", cmd.PlaylistID)
	assert.Equal(t, 2, cmd.Index)
	assert.Equal(t, "youtube", cmd.Source)
	assert.Equal(t, "dQw4w9WgXcQ", cmd.YouTubeID)
	assert.Equal(t, 15, cmd.Duration)
}

func TestBridgeShowWaiting(t *testing.T) {
	conn := newFakeConn()
	b := NewBridge(conn, "tv-1", zerolog.Nop())

	require.NoError(t, b.ShowWaiting(scheduler.IdleNothingScheduled))

	var cmd Command
	require.NoError(t, json.Unmarshal(conn.published["tv/tv-1/commands"][0], &cmd))
	assert.Equal(t, "waiting", cmd.Type)
	assert.Equal(t, "nothing_scheduled", cmd.Reason)
}

func TestBridgePublishError(t *testing.T) {
	conn := newFakeConn()
	conn.publishErr = errors.New("not connected")
	b := NewBridge(conn, "tv-1", zerolog.Nop())

	assert.Error(t, b.ShowWaiting(scheduler.IdleNoPlaylists))
}

func TestBridgeListen(t *testing.T) {
	conn := newFakeConn()
	b := NewBridge(conn, "tv-1", zerolog.Nop())

	var got []playback.RenderEvent
	require.NoError(t, b.Listen(func(ev playback.RenderEvent) { got = append(got, ev) }))

	conn.deliver("tv/tv-1/events", `{"type":"finished","token":3}`)
	conn.deliver("tv/tv-1/events", `garbage`)
	conn.deliver("tv/tv-1/events", `{"type":"error","token":4,"error":"decode failed"}`)

	assert.Equal(t, []playback.RenderEvent{
		{Token: 3, Kind: playback.EventFinished},
		{Token: 4, Kind: playback.EventError, Err: "decode failed"},
	}, got)

	b.Close()
	assert.True(t, conn.disconnected)
	assert.Empty(t, conn.handlers)
}

func TestParseEvent(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"paused","token":1}`))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"type":"finished"}`))
	assert.Error(t, err)

	ev, err := ParseEvent([]byte(`{"type":"error","token":9}`))
	require.NoError(t, err)
	assert.Equal(t, playback.EventError, ev.Kind)
}
