package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"PlayGrid/tools/decode"
	errs "PlayGrid/tools/errs"
)

// FrameType tags every frame on the wire. Dispatch is a single exhaustive
// switch in the server so a new frame kind is a compile-visible addition.
type FrameType string

const (
	// inbound
	FrameAuth     FrameType = "auth"
	FrameJoin     FrameType = "join_conversation"
	FrameLeave    FrameType = "leave_conversation"
	FrameMessage  FrameType = "message"
	FramePing     FrameType = "ping"
	FrameMarkRead FrameType = "mark_read"
	FrameHistory  FrameType = "history"

	// outbound
	FrameConnected   FrameType = "connected"
	FrameAuthSuccess FrameType = "auth_success"
	FrameError       FrameType = "error"
	FramePong        FrameType = "pong"
	FrameNotify      FrameType = "notify"
)

// ---- inbound payloads ----

type AuthPayload struct {
	Token string `json:"token"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type MessagePayload struct {
	ConversationID string `json:"conversationId"`
	Message        struct {
		SenderID   string `json:"senderId"`
		ReceiverID string `json:"receiverId"`
		Content    string `json:"content"`
	} `json:"message"`
}

type MarkReadPayload struct {
	FromUserID string `json:"fromUserId"`
}

type HistoryPayload struct {
	WithUserID string `json:"withUserId"`
}

// ParseFrame splits a raw frame into its type tag and the untyped body.
// Bodies are decoded per frame kind via DecodePayload so one bad field
// degrades to MalformedFrame instead of killing the connection.
func ParseFrame(raw []byte) (FrameType, map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", nil, errs.ErrMalformedFrame.WrapMsg("unparseable frame", "err", err)
	}
	t, _ := body["type"].(string)
	if t == "" {
		return "", nil, errs.ErrMalformedFrame.WrapMsg("missing type field")
	}
	return FrameType(t), body, nil
}

// DecodePayload decodes the untyped frame body into the typed payload for
// its frame kind.
func DecodePayload[T any](body map[string]any) (*T, error) {
	p, err := decode.Map[T](body)
	if err != nil {
		return nil, errs.ErrMalformedFrame.WrapMsg("bad payload", "err", err)
	}
	return p, nil
}

// ---- outbound frames ----

type connectedFrame struct {
	Type         FrameType `json:"type"`
	ClientID     string    `json:"clientId"`
	RequiresAuth bool      `json:"requiresAuth"`
}

type authSuccessFrame struct {
	Type     FrameType `json:"type"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
}

type errorFrame struct {
	Type    FrameType `json:"type"`
	Code    int       `json:"code,omitempty"`
	Message string    `json:"message"`
}

type messageFrame struct {
	Type           FrameType      `json:"type"`
	ConversationID string         `json:"conversationId"`
	Message        *DirectMessage `json:"message"`
}

type pongFrame struct {
	Type      FrameType `json:"type"`
	Timestamp int64     `json:"timestamp"`
}

type historyFrame struct {
	Type       FrameType        `json:"type"`
	WithUserID string           `json:"withUserId"`
	Messages   []*DirectMessage `json:"messages"`
}

type notifyFrame struct {
	Type  FrameType      `json:"type"`
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

func BuildConnected(clientID string) []byte {
	return mustJSON(connectedFrame{Type: FrameConnected, ClientID: clientID, RequiresAuth: true})
}

func BuildAuthSuccess(userID, username string) []byte {
	return mustJSON(authSuccessFrame{Type: FrameAuthSuccess, UserID: userID, Username: username})
}

// BuildError maps any error to an error frame; coded errors keep their code
// so clients can distinguish auth timeout from a generic failure.
func BuildError(err error) []byte {
	f := errorFrame{Type: FrameError, Message: "internal error"}
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		f.Code = ce.Code
		f.Message = ce.Msg
		if ce.Detail != "" {
			f.Message += ": " + ce.Detail
		}
	} else if err != nil {
		f.Message = err.Error()
	}
	return mustJSON(f)
}

func BuildMessage(conversationID string, m *DirectMessage) []byte {
	return mustJSON(messageFrame{Type: FrameMessage, ConversationID: conversationID, Message: m})
}

func BuildPong() []byte {
	return mustJSON(pongFrame{Type: FramePong, Timestamp: time.Now().UnixMilli()})
}

func BuildHistory(withUserID string, msgs []*DirectMessage) []byte {
	if msgs == nil {
		msgs = []*DirectMessage{}
	}
	return mustJSON(historyFrame{Type: FrameHistory, WithUserID: withUserID, Messages: msgs})
}

func BuildNotify(event string, data map[string]any) []byte {
	return mustJSON(notifyFrame{Type: FrameNotify, Event: event, Data: data})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// all outbound frame types are plain data, this cannot fail
		panic(err)
	}
	return b
}
