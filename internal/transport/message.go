// Package transport maintains the framed, ordered, duplex message stream to
// the chat server. Frames are JSON objects with a string "type" and an
// object "data". Outbound frames pass through a bounded FIFO that survives
// reconnects, so messages enqueued while the link is down are delivered once
// the session is re-established.
package transport

import (
	"encoding/json"
	"fmt"
)

// Message is a single frame on the wire.
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Decode parses a raw frame. A frame without both "type" and "data" is
// invalid.
func Decode(raw []byte) (Message, error) {
	var probe struct {
		Type *string         `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if probe.Type == nil || probe.Data == nil {
		return Message{}, fmt.Errorf("invalid frame structure: %s", raw)
	}
	var data map[string]any
	if err := json.Unmarshal(probe.Data, &data); err != nil {
		return Message{}, fmt.Errorf("decode frame data: %w", err)
	}
	return Message{Type: *probe.Type, Data: data}, nil
}

// Encode serializes the frame for the wire.
func (m Message) Encode() ([]byte, error) {
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	return json.Marshal(m)
}

// Outbound frame constructors. These are the only frame types the bot sends.

// Auth builds the first-connection authentication frame.
func Auth(token string) Message {
	return Message{Type: "auth", Data: map[string]any{"token": token}}
}

// Resume rejoins a suspended session.
func Resume(token string) Message {
	return Message{Type: "resume", Data: map[string]any{"token": token}}
}

// Subscribe subscribes to a server-side event feed, with optional extra data.
func Subscribe(event string, data map[string]any) Message {
	o := map[string]any{"event": event}
	if data != nil {
		o["data"] = data
	}
	return Message{Type: "subscribe", Data: o}
}

// SubscribeMatch subscribes to the update feed of one multiplayer match.
func SubscribeMatch(matchID int) Message {
	return Subscribe("multiplayer", map[string]any{"match_id": matchID})
}

// JoinChatChannel requests membership in a chat channel.
func JoinChatChannel(name string) Message {
	return Message{Type: "join_chat_channel", Data: map[string]any{"name": name}}
}

// ChatMessage sends a chat message to a channel name or username.
func ChatMessage(message, target string) Message {
	return Message{Type: "chat_message", Data: map[string]any{"message": message, "target": target}}
}

// Pong answers a server ping.
func Pong() Message {
	return Message{Type: "pong", Data: map[string]any{}}
}
