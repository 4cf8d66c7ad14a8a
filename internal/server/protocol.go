// Package server defines the plain-text wire protocol: command tokens,
// message rendering, and directed-message parsing.
package server

import (
	"fmt"
	"strings"
)

// Command tokens are matched case-insensitively after trimming.
const (
	listCommand = "/list"
	quitCommand = "/quit"

	// targetSeparator splits a directed message into target and body on
	// its first occurrence.
	targetSeparator = ":"
)

// Registration replies. Clients confirm success by looking for the
// "Welcome" substring, so the rejection texts must never contain it.
const (
	emptyUsernameReply    = "Username cannot be empty"
	reservedUsernameReply = "Invalid username"
	takenUsernameReply    = "Username already taken"
)

// usageReply is sent back when an active-state line is neither a command nor
// a directed message.
const usageReply = "Use '/list' or 'user: message'"

func welcomeMessage(name string) string {
	return fmt.Sprintf("Welcome %s! Type '/list' for users or 'user:message'", name)
}

func joinMessage(name string) string {
	return fmt.Sprintf("User %s has entered the chat.", name)
}

func leaveMessage(name string) string {
	return fmt.Sprintf("User %s has left the chat.", name)
}

func relayMessage(sender, body string) string {
	return fmt.Sprintf("%s: %s", sender, body)
}

func notFoundMessage(target string) string {
	return fmt.Sprintf("User %s not found", target)
}

func activeUsersMessage(names []string) string {
	if len(names) == 0 {
		return "No users connected"
	}
	return "Active users: " + strings.Join(names, ", ")
}

// isCommand reports whether line is the given command token, ignoring case.
func isCommand(line, command string) bool {
	return strings.EqualFold(line, command)
}

// splitDirected splits a "target:body" line on the first separator. Both
// halves are trimmed. ok is false when the line carries no separator.
func splitDirected(line string) (target, body string, ok bool) {
	target, body, ok = strings.Cut(line, targetSeparator)
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(target), strings.TrimSpace(body), true
}

// validateUsername returns the rejection reply for an unusable candidate
// name, or "" when the name is acceptable. Registry collisions are checked
// separately at registration time.
func validateUsername(name string) string {
	if name == "" {
		return emptyUsernameReply
	}
	if isCommand(name, listCommand) {
		return reservedUsernameReply
	}
	return ""
}
