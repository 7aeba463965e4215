package services

import (
	"strings"

	"gemchat-backend/internal/models"
)

// BuildPrompt renders history as "role: content" lines followed by the new
// message as a "User:" line.
func BuildPrompt(history []models.ChatMessage, message string) string {
	lines := make([]string, 0, len(history)+1)
	for _, turn := range history {
		lines = append(lines, turn.Role+": "+turn.Content)
	}
	lines = append(lines, "User: "+message)
	return strings.Join(lines, "\n")
}
