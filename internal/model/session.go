// Package model defines domain types for opencode usage accounting.
package model

import (
	"strings"
)

// Role values carried by opencode message infos.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Part types and tool states used for tool attribution.
const (
	PartTool       = "tool"
	PartStepFinish = "step-finish"

	ToolCompleted = "completed"
)

// UnknownAgent labels messages without a usable agent or mode.
const UnknownAgent = "unknown"

// Tokens is the token usage reported for one message or step.
// Missing upstream fields are already zero by the time a Tokens value exists.
type Tokens struct {
	Input     int64
	Output    int64
	Reasoning int64
	Cache     CacheStats
}

// AssistantMessage is one model reply with its billing telemetry.
type AssistantMessage struct {
	ID          string
	SessionID   string
	ParentID    string
	ModelID     string
	ProviderID  string
	Mode        string
	Cost        float64
	Tokens      Tokens
	CreatedMs   int64
	CompletedMs int64
}

// ModelKey returns the "provider/model" join key of the message.
func (m AssistantMessage) ModelKey() string {
	return ModelKey(m.ProviderID, m.ModelID)
}

// Agent returns the execution agent (mode), or UnknownAgent when blank.
func (m AssistantMessage) Agent() string {
	return AgentOrUnknown(m.Mode)
}

// UserMessage is one prompt, carrying the agent that issued it.
type UserMessage struct {
	ID         string
	SessionID  string
	Agent      string
	ProviderID string
	ModelID    string
	CreatedMs  int64
}

// Part is a message part. Only the fields needed for tool attribution are kept;
// tool input and output payloads are never decoded.
type Part struct {
	Type   string
	Tool   string
	Status string
	Title  string
	// HasTitle distinguishes an empty title from a missing one.
	HasTitle bool
	Tokens   Tokens
	Cost     float64
}

// RawMessage is one entry of a session's message list.
// Exactly one of Assistant and User is set; both nil means the info was missing.
type RawMessage struct {
	Assistant *AssistantMessage
	User      *UserMessage
	Parts     []Part
}

// PreparedMessage is an assistant message with its parts.
type PreparedMessage struct {
	Info  AssistantMessage
	Parts []Part
}

// ModelKey joins a provider and model id.
func ModelKey(providerID, modelID string) string {
	return providerID + "/" + modelID
}

// AgentModelKey joins an agent and a model key.
func AgentModelKey(agent, modelKey string) string {
	return agent + "|" + modelKey
}

// AgentOrUnknown returns name, or UnknownAgent when it is empty or whitespace.
func AgentOrUnknown(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownAgent
	}
	return name
}
