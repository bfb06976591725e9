package gateway

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	errs "PlayGrid/tools/errs"
)

func TestParseFrameRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"not json", "[]", "42", `{"noType":true}`, `{"type":""}`} {
		if _, _, err := ParseFrame([]byte(raw)); errs.CodeOf(err) != errs.CodeMalformedFrame {
			t.Fatalf("raw %q: want malformed frame, got %v", raw, err)
		}
	}
}

func TestParseFrameSplitsTypeAndBody(t *testing.T) {
	ft, body, err := ParseFrame([]byte(`{"type":"join_conversation","conversationId":"1-2"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ft != FrameJoin {
		t.Fatalf("type=%q", ft)
	}
	p, err := DecodePayload[ConversationPayload](body)
	if err != nil {
		t.Fatal(err)
	}
	if p.ConversationID != "1-2" {
		t.Fatalf("conversationId=%q", p.ConversationID)
	}
}

func TestDecodePayloadNestedMessage(t *testing.T) {
	_, body, err := ParseFrame([]byte(`{
		"type": "message",
		"conversationId": "1-2",
		"message": {"senderId": "1", "receiverId": "2", "content": "hi"}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	p, err := DecodePayload[MessagePayload](body)
	if err != nil {
		t.Fatal(err)
	}
	if p.Message.SenderID != "1" || p.Message.ReceiverID != "2" || p.Message.Content != "hi" {
		t.Fatalf("decoded %+v", p)
	}
}

func TestBuildErrorKeepsCode(t *testing.T) {
	var f errorFrame
	if err := json.Unmarshal(BuildError(errs.ErrAuthTimeout), &f); err != nil {
		t.Fatal(err)
	}
	if f.Type != FrameError || f.Code != errs.CodeAuthTimeout {
		t.Fatalf("frame %+v", f)
	}

	if err := json.Unmarshal(BuildError(errs.ErrAuthInvalid.WithDetail("expired")), &f); err != nil {
		t.Fatal(err)
	}
	if f.Code != errs.CodeAuthInvalid || f.Message != "invalid or expired token: expired" {
		t.Fatalf("frame %+v", f)
	}
}

func TestBuildErrorPlainError(t *testing.T) {
	var f errorFrame
	if err := json.Unmarshal(BuildError(errors.New("boom")), &f); err != nil {
		t.Fatal(err)
	}
	if f.Code != 0 || f.Message != "boom" {
		t.Fatalf("frame %+v", f)
	}
}

func TestBuildMessageRoundTrip(t *testing.T) {
	m := &DirectMessage{
		ID: "m1", SenderID: "1", ReceiverID: "2",
		Content: "hi", CreatedAt: time.Now().UTC(),
	}
	var f struct {
		Type           FrameType      `json:"type"`
		ConversationID string         `json:"conversationId"`
		Message        *DirectMessage `json:"message"`
	}
	if err := json.Unmarshal(BuildMessage("1-2", m), &f); err != nil {
		t.Fatal(err)
	}
	if f.Type != FrameMessage || f.ConversationID != "1-2" || f.Message.ID != "m1" {
		t.Fatalf("frame %+v", f)
	}
}

func TestBuildHistoryNeverNull(t *testing.T) {
	var f struct {
		Messages []*DirectMessage `json:"messages"`
	}
	raw := BuildHistory("2", nil)
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatal(err)
	}
	if f.Messages == nil {
		t.Fatalf("messages must serialize as [], got %s", raw)
	}
}
