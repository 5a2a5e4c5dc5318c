package chatbot

import "bladi-assistant/internal/model"

// History is a read-only view of a session's recent messages, oldest first.
type History struct {
	Messages []model.Message
}

// Recent returns the last n messages of any role, oldest first.
func (h History) Recent(n int) []model.Message {
	if n <= 0 || len(h.Messages) == 0 {
		return nil
	}
	if n >= len(h.Messages) {
		return h.Messages
	}
	return h.Messages[len(h.Messages)-n:]
}

// LastByRole returns up to n messages of the given role, most recent first.
func (h History) LastByRole(role model.Role, n int) []model.Message {
	out := make([]model.Message, 0, n)
	for i := len(h.Messages) - 1; i >= 0 && len(out) < n; i-- {
		if h.Messages[i].Role == role {
			out = append(out, h.Messages[i])
		}
	}
	return out
}
