// Package renderer bridges the playback engine to the display process over
// MQTT. Commands go out on tv/<device>/commands and render callbacks come back
// on tv/<device>/events.
package renderer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/lumen/internal/playback"
	"github.com/Nixie-Tech-LLC/lumen/internal/scheduler"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
)

func CommandTopic(deviceID string) string { return fmt.Sprintf("tv/%s/commands", deviceID) }
func EventTopic(deviceID string) string   { return fmt.Sprintf("tv/%s/events", deviceID) }

// Conn is the part of mqtt.Client the bridge uses.
type Conn interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Connect opens a client to brokerURL named after the device.
func Connect(brokerURL, deviceID string, logger zerolog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("player-%s", deviceID))
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// Command is the JSON message published for the display.
type Command struct {
	Type       string `json:"type"`
	Token      uint64 `json:"token,omitempty"`
	PlaylistID string `json:"playlist_id,omitempty"`
	Index      int    `json:"index"`
	MediaID    string `json:"media_id,omitempty"`
	MediaType  string `json:"media_type,omitempty"`
	URL        string `json:"url,omitempty"`
	Source     string `json:"source,omitempty"`
	YouTubeID  string `json:"youtube_id,omitempty"`
	Duration   int    `json:"duration_seconds,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Event is what the display reports back.
type Event struct {
	Type  string `json:"type"`
	Token uint64 `json:"token"`
	Error string `json:"error,omitempty"`
}

// Bridge implements playback.Renderer.
type Bridge struct {
	conn     Conn
	deviceID string
	logger   zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	listening bool
}

var _ playback.Renderer = (*Bridge)(nil)

func NewBridge(conn Conn, deviceID string, logger zerolog.Logger) *Bridge {
	return &Bridge{
		conn:     conn,
		deviceID: deviceID,
		logger:   logger.With().Str("component", "renderer").Str("device_id", deviceID).Logger(),
		now:      time.Now,
	}
}

func (b *Bridge) Present(p playback.Presentation) error {
	return b.publish(PresentCommand(p, b.now()))
}

func (b *Bridge) ShowWaiting(reason scheduler.IdleReason) error {
	return b.publish(Command{Type: "waiting", Reason: string(reason), Timestamp: b.now().Unix()})
}

// PresentCommand converts a presentation into its wire form.
func PresentCommand(p playback.Presentation, now time.Time) Command {
	return Command{
		Type:       "present",
		Token:      p.Token,
		PlaylistID: p.PlaylistID,
		Index:      p.Index,
		MediaID:    p.Media.ID,
		MediaType:  string(p.Media.Type),
		URL:        p.Media.URL,
		Source:     string(p.Source),
		YouTubeID:  p.YouTubeID,
		Duration:   int(p.Duration / time.Second),
		Timestamp:  now.Unix(),
	}
}

func (b *Bridge) publish(cmd Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	topic := CommandTopic(b.deviceID)
	token := b.conn.Publish(topic, qos, false, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd.Type, err)
	}
	return nil
}

// Listen delivers parsed events from the display to handler, on the MQTT
// client's goroutine.
func (b *Bridge) Listen(handler func(playback.RenderEvent)) error {
	topic := EventTopic(b.deviceID)
	token := b.conn.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		ev, err := ParseEvent(msg.Payload())
		if err != nil {
			b.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropping malformed render event")
			return
		}
		handler(ev)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}
	b.mu.Lock()
	b.listening = true
	b.mu.Unlock()
	return nil
}

// Close unsubscribes and disconnects.
func (b *Bridge) Close() {
	b.mu.Lock()
	listening := b.listening
	b.listening = false
	b.mu.Unlock()
	if listening {
		b.conn.Unsubscribe(EventTopic(b.deviceID)).WaitTimeout(publishTimeout)
	}
	b.conn.Disconnect(250)
}

func ParseEvent(payload []byte) (playback.RenderEvent, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return playback.RenderEvent{}, err
	}
	kind := playback.RenderEventKind(ev.Type)
	switch kind {
	case playback.EventFinished, playback.EventError:
	default:
		return playback.RenderEvent{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.Token == 0 {
		return playback.RenderEvent{}, errors.New("event without token")
	}
	return playback.RenderEvent{Token: ev.Token, Kind: kind, Err: ev.Error}, nil
}
