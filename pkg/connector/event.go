// Copyright 2024-2026 Aiku AI

package connector

import (
	"strings"

	"gopkg.in/irc.v4"
)

// Event is a single line received from the IRC server.
type Event struct {
	// Raw is the line exactly as received, without the trailing CRLF.
	Raw string
	// Message is the parsed form of Raw.
	Message *irc.Message
}

// String renders the event in its canonical wire form without the line
// terminator. The received text is preferred so that nothing the server
// sent is lost to re-serialization.
func (e *Event) String() string {
	if e == nil {
		return ""
	}
	if e.Raw != "" {
		return e.Raw
	}
	if e.Message != nil {
		return e.Message.String()
	}
	return ""
}

// NormalizeCommand appends the IRC line terminator to payload unless it
// already ends with one.
func NormalizeCommand(payload string) string {
	if strings.HasSuffix(payload, "\r\n") {
		return payload
	}
	return payload + "\r\n"
}

// ParseCommand validates a normalized outbound line as a single IRC message.
func ParseCommand(line string) (*irc.Message, error) {
	body := strings.TrimSuffix(line, "\r\n")
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyCommand
	}
	if strings.ContainsAny(body, "\r\n\x00") {
		return nil, ErrEmbeddedLineBreak
	}
	msg, err := irc.ParseMessage(body)
	if err != nil {
		return nil, err
	}
	if msg.Command == "" {
		return nil, ErrMissingCommandName
	}
	return msg, nil
}
