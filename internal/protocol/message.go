package protocol

import (
	"encoding/json"
	"time"
)

// MessageType identifies a WebSocket message
type MessageType string

// Client → Server
const (
	TypePlayerAction     MessageType = "player_action"
	TypeStartNextRound   MessageType = "start_next_round"
	TypeAICopilotSetting MessageType = "ai_copilot_setting"
	TypeReviewRequest    MessageType = "review_request"
	TypeNewGame          MessageType = "new_game"
	TypeDebugMode        MessageType = "debug_mode"
	TypePing             MessageType = "ping"
)

// Server → Client
const (
	TypeSystem           MessageType = "system"
	TypeNeedsAPIKey      MessageType = "needs_api_key"
	TypeGameStart        MessageType = "game_start"
	TypeRoundStart       MessageType = "round_start"
	TypeStreetStart      MessageType = "street_start"
	TypeGameUpdate       MessageType = "game_update"
	TypeActionRequest    MessageType = "action_request"
	TypeRoundResult      MessageType = "round_result"
	TypeReviewResult     MessageType = "review_result"
	TypeDebugLog         MessageType = "debug_log"
	TypeDebugModeUpdated MessageType = "debug_mode_updated"
	TypePong             MessageType = "pong"
	TypeError            MessageType = "error"
)

// Message is the wire envelope for every frame in both directions
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
}

// NewMessage wraps a payload in an envelope with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Message{
		Type:      messageType,
		Data:      raw,
		Timestamp: time.Now(),
	}, nil
}

// MustMessage is NewMessage for payloads that cannot fail to marshal
func MustMessage(messageType MessageType, data interface{}) *Message {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		panic(err)
	}
	return msg
}

// Decode unmarshals the message payload into v
func (m *Message) Decode(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}
