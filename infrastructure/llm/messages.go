package llm

import (
	"strconv"
	"strings"

	"github.com/solumlabs/aibridge/internal/ports"
)

// validateMessages enforces the chat contract shared by all provider
// variants: a non-empty sequence where every entry carries an allowed role
// and non-blank content. The first offending entry is reported by index.
func validateMessages(messages []ports.ChatMessage) error {
	if len(messages) == 0 {
		return ErrEmptyInput
	}

	for i, m := range messages {
		switch m.Role {
		case ports.RoleSystem, ports.RoleUser, ports.RoleAssistant:
		case "":
			return &MessageStructureError{Index: i, Reason: "missing role"}
		default:
			return &MessageStructureError{Index: i, Reason: "role must be system, user, or assistant, got " + strconv.Quote(m.Role)}
		}
		if strings.TrimSpace(m.Content) == "" {
			return &MessageStructureError{Index: i, Reason: "missing content"}
		}
	}
	return nil
}

// isBlank reports whether a prompt is empty or whitespace-only.
func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
