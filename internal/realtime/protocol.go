package realtime

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Event names carried on the real-time channel.
const (
	EventJoinSession    = "joinSession"
	EventSendMessage    = "sendMessage"
	EventUpdateMessages = "updateMessages"
)

// Envelope is one frame on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data under event.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// SendMessage is the payload of a sendMessage event.
type SendMessage struct {
	SightID string `json:"sightId"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// ChannelURL derives the channel endpoint from the server base URL.
func ChannelURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("server url %q: unsupported scheme %q", serverURL, u.Scheme)
	}
	return u.JoinPath("ws").String(), nil
}
