// Package command implements the slash commands understood by the console.
package command

import (
	"fmt"
	"strings"

	"github.com/ashureev/hacxweb/internal/domain"
)

// Prefix marks input that is routed to Dispatch instead of the model.
const Prefix = "/"

// HelpText is the static command listing.
const HelpText = `Available Commands:
/help - Show this help message
/status - Show current configuration
/models - List available models
/clear - Clear conversation history
/new - Start new conversation`

const (
	msgNoConnection = "⚠️ No active connection"
	msgNoProvider   = "⚠️ No provider selected"
	msgClearHint    = "✓ Use the 'Clear' button to clear conversation history"
	msgNewSession   = "✓ Memory wiped. New session started."
)

// IsCommand reports whether input should be handled by Dispatch.
func IsCommand(input string) bool {
	return strings.HasPrefix(input, Prefix)
}

// Dispatch interprets a slash command against st and returns render-ready
// text. The only side effect is resetting the session for /new.
func Dispatch(raw string, st domain.SessionState) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "/help":
		return HelpText
	case "/status":
		return status(st)
	case "/models":
		return models(st)
	case "/clear":
		return msgClearHint
	case "/new":
		if !st.Connected() {
			return msgNoConnection
		}
		st.Session.Reset()
		return msgNewSession
	default:
		return fmt.Sprintf("⚠️ Unknown command: %s\nType /help for available commands", raw)
	}
}

func status(st domain.SessionState) string {
	if !st.Connected() {
		return msgNoConnection
	}
	provider := ""
	if st.Provider != nil {
		provider = strings.ToUpper(st.Provider.ID)
	}
	return fmt.Sprintf("System Status:\nProvider: %s\nModel: %s\nStatus: ✓ Connected", provider, st.Model)
}

func models(st domain.SessionState) string {
	if st.Provider == nil {
		return msgNoProvider
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Available Models for %s:", strings.ToUpper(st.Provider.ID))
	for _, m := range st.Provider.Models {
		fmt.Fprintf(&b, "\n• %s - %s", m.Name, m.Alias)
	}
	return b.String()
}
