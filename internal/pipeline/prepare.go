package pipeline

import "github.com/theirongolddev/ocburn/internal/model"

// Prepared is a session message list split by role.
type Prepared struct {
	Assistant []model.PreparedMessage
	User      []model.UserMessage
}

// Infos returns the assistant message infos in order.
func (p Prepared) Infos() []model.AssistantMessage {
	out := make([]model.AssistantMessage, len(p.Assistant))
	for i, m := range p.Assistant {
		out[i] = m.Info
	}
	return out
}

// Parts returns the parts of every assistant message, concatenated in order.
func (p Prepared) Parts() []model.Part {
	var out []model.Part
	for _, m := range p.Assistant {
		out = append(out, m.Parts...)
	}
	return out
}

// PrepareMessages splits raw messages into assistant replies (with parts) and
// user prompts. Entries without an info are skipped.
func PrepareMessages(raw []model.RawMessage) Prepared {
	var p Prepared
	for _, r := range raw {
		switch {
		case r.Assistant != nil:
			p.Assistant = append(p.Assistant, model.PreparedMessage{Info: *r.Assistant, Parts: r.Parts})
		case r.User != nil:
			p.User = append(p.User, *r.User)
		}
	}
	return p
}

// PrepareWithChildren prepares the root messages followed by each child's messages.
func PrepareWithChildren(root []model.RawMessage, children [][]model.RawMessage) Prepared {
	merged := make([]model.RawMessage, 0, len(root))
	merged = append(merged, root...)
	for _, c := range children {
		merged = append(merged, c...)
	}
	return PrepareMessages(merged)
}
