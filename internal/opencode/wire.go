package opencode

import (
	"encoding/json"

	"github.com/theirongolddev/ocburn/internal/model"
)

// Wire types mirror the opencode server JSON. Pointer and omitted fields
// decode to zero here and nowhere else.

type wireCache struct {
	Read  int64 `json:"read"`
	Write int64 `json:"write"`
}

type wireTokens struct {
	Input     int64      `json:"input"`
	Output    int64      `json:"output"`
	Reasoning int64      `json:"reasoning"`
	Cache     *wireCache `json:"cache"`
}

func (t *wireTokens) normalize() model.Tokens {
	if t == nil {
		return model.Tokens{}
	}
	out := model.Tokens{
		Input:     max(t.Input, 0),
		Output:    max(t.Output, 0),
		Reasoning: max(t.Reasoning, 0),
	}
	if t.Cache != nil {
		out.Cache = model.CacheStats{Read: max(t.Cache.Read, 0), Write: max(t.Cache.Write, 0)}
	}
	return out
}

type wireTime struct {
	Created   int64 `json:"created"`
	Completed int64 `json:"completed"`
}

type wireModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

type wireInfo struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"sessionID"`
	Role       string        `json:"role"`
	ParentID   string        `json:"parentID"`
	ModelID    string        `json:"modelID"`
	ProviderID string        `json:"providerID"`
	Mode       string        `json:"mode"`
	Agent      string        `json:"agent"`
	Cost       float64       `json:"cost"`
	Tokens     *wireTokens   `json:"tokens"`
	Time       *wireTime     `json:"time"`
	Model      *wireModelRef `json:"model"`
}

type wireState struct {
	Status string  `json:"status"`
	Title  *string `json:"title"`
}

type wirePart struct {
	Type   string      `json:"type"`
	Tool   string      `json:"tool"`
	State  *wireState  `json:"state"`
	Tokens *wireTokens `json:"tokens"`
	Cost   float64     `json:"cost"`
}

type wireMessage struct {
	Info  *wireInfo  `json:"info"`
	Parts []wirePart `json:"parts"`
}

type wireSession struct {
	ID       string `json:"id"`
	ParentID string `json:"parentID"`
}

type wireProject struct {
	ID       string `json:"id"`
	Worktree string `json:"worktree"`
}

func (w wirePart) normalize() model.Part {
	p := model.Part{
		Type:   w.Type,
		Tool:   w.Tool,
		Tokens: w.Tokens.normalize(),
		Cost:   w.Cost,
	}
	if w.State != nil {
		p.Status = w.State.Status
		if w.State.Title != nil {
			p.Title, p.HasTitle = *w.State.Title, true
		}
	}
	return p
}

func (w wireMessage) normalize() model.RawMessage {
	parts := make([]model.Part, 0, len(w.Parts))
	for _, p := range w.Parts {
		parts = append(parts, p.normalize())
	}
	msg := model.RawMessage{Parts: parts}
	if w.Info == nil {
		return msg
	}

	info := w.Info
	var t wireTime
	if info.Time != nil {
		t = *info.Time
	}

	switch info.Role {
	case model.RoleAssistant:
		msg.Assistant = &model.AssistantMessage{
			ID:          info.ID,
			SessionID:   info.SessionID,
			ParentID:    info.ParentID,
			ModelID:     info.ModelID,
			ProviderID:  info.ProviderID,
			Mode:        info.Mode,
			Cost:        info.Cost,
			Tokens:      info.Tokens.normalize(),
			CreatedMs:   t.Created,
			CompletedMs: t.Completed,
		}
	case model.RoleUser:
		u := &model.UserMessage{
			ID:        info.ID,
			SessionID: info.SessionID,
			Agent:     info.Agent,
			CreatedMs: t.Created,
		}
		if info.Model != nil {
			u.ProviderID, u.ModelID = info.Model.ProviderID, info.Model.ModelID
		}
		msg.User = u
	}
	return msg
}

// decodeMessages parses a /session/{id}/message body.
func decodeMessages(body []byte) ([]model.RawMessage, error) {
	var wire []wireMessage
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	out := make([]model.RawMessage, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.normalize())
	}
	return out, nil
}

// Event is one server-sent event from /event.
type Event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

type messageUpdatedProps struct {
	Info *wireInfo `json:"info"`
}

type sessionIdleProps struct {
	SessionID string `json:"sessionID"`
}

// Event types handled by ocburn.
const (
	EventMessageUpdated = "message.updated"
	EventSessionIdle    = "session.idle"
)

// UpdatedMessage returns the message of a message.updated event.
// ok is false for other event types or a missing info.
func (e Event) UpdatedMessage() (msg model.RawMessage, ok bool) {
	if e.Type != EventMessageUpdated || len(e.Properties) == 0 {
		return model.RawMessage{}, false
	}
	var props messageUpdatedProps
	if err := json.Unmarshal(e.Properties, &props); err != nil || props.Info == nil {
		return model.RawMessage{}, false
	}
	return wireMessage{Info: props.Info}.normalize(), true
}

// IdleSession returns the session id of a session.idle event.
func (e Event) IdleSession() (string, bool) {
	if e.Type != EventSessionIdle || len(e.Properties) == 0 {
		return "", false
	}
	var props sessionIdleProps
	if err := json.Unmarshal(e.Properties, &props); err != nil || props.SessionID == "" {
		return "", false
	}
	return props.SessionID, true
}
