package chat

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Server-to-client protocol lines.
const (
	WelcomeBanner          = "Welcome to the chatroom!"
	UsernamePrompt         = "Please send your username consisting of 3-16 alphanumeric characters:"
	InvalidUsernamePrompt  = "Invalid username. Please try again: "
	HelpHint               = "Type /help for a list of commands."
	ServerFullMessage      = "Server full. Try again later."
	SendingLogsMessage     = "Sending logs..."
	LogsTrailer            = "End of logs. (Logged by DittoChat journal)"
	LogsUnavailableMessage = "Logs are unavailable right now."
	UnknownCommandMessage  = "Unknown command. Use /help for a list of commands."
	LineTooLongMessage     = "Message too long."

	HelpMessage = `Commands:
    /help - show this message
    /quit - quit the chatroom
    /logs - show the log history for the current server`
)

// Username bounds, in characters.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 16
)

// Commands understood in the Active state.
const (
	CommandQuit = "/quit"
	CommandHelp = "/help"
	CommandLogs = "/logs"
)

// WelcomeUserMessage is sent after a successful login.
func WelcomeUserMessage(username string) string {
	return fmt.Sprintf("Welcome, %s!", username)
}

// JoinAnnouncement is broadcast to everyone but the joiner.
func JoinAnnouncement(username string) string {
	return fmt.Sprintf("%s has joined the chatroom.", username)
}

// LeaveAnnouncement is broadcast once a logged-in session is reaped.
func LeaveAnnouncement(username string) string {
	return fmt.Sprintf("%s has left the chat.", username)
}

// ChatLine formats a relayed chat message.
func ChatLine(username, text string) string {
	return username + ": " + text
}

// ValidUsername reports whether name is 3-16 characters, all letters or numbers.
func ValidUsername(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
