// Copyright 2024-2026 Aiku AI

package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/irc.v4"
)

func TestNormalizeCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{in: "PRIVMSG #chan :hello", want: "PRIVMSG #chan :hello\r\n"},
		{in: "PRIVMSG #chan :hello\r\n", want: "PRIVMSG #chan :hello\r\n"},
		{in: "PING x\n", want: "PING x\n\r\n"},
		{in: "", want: "\r\n"},
	}
	for _, tt := range tests {
		got := NormalizeCommand(tt.in)
		assert.Equal(t, tt.want, got, "NormalizeCommand(%q)", tt.in)
		assert.Equal(t, got, NormalizeCommand(got), "NormalizeCommand must be idempotent")
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	msg, err := ParseCommand("PRIVMSG #chan :hello world\r\n")
	require.NoError(t, err)
	assert.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, []string{"#chan", "hello world"}, msg.Params)

	msg, err = ParseCommand("@time=2024-01-01T00:00:00Z :me!u@h JOIN #a\r\n")
	require.NoError(t, err)
	assert.Equal(t, "JOIN", msg.Command)
	assert.Equal(t, "me", msg.Prefix.Name)
}

func TestParseCommand_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
		want error
	}{
		{name: "empty", line: "\r\n", want: ErrEmptyCommand},
		{name: "blank", line: "   \r\n", want: ErrEmptyCommand},
		{name: "two lines", line: "JOIN #a\r\nPART #a\r\n", want: ErrEmbeddedLineBreak},
		{name: "bare newline", line: "JOIN #a\nPART #a\r\n", want: ErrEmbeddedLineBreak},
		{name: "nul byte", line: "PRIVMSG #a :x\x00y\r\n", want: ErrEmbeddedLineBreak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.line)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := ParseCommand(":only.a.prefix\r\n")
	assert.Error(t, err)
	_, err = ParseCommand("@a=b\r\n")
	assert.Error(t, err)
}

func TestEventString(t *testing.T) {
	t.Parallel()
	var nilEvent *Event
	assert.Equal(t, "", nilEvent.String())
	assert.Equal(t, "PRIVMSG #chan :hi", (&Event{Raw: "PRIVMSG #chan :hi"}).String())

	msg := &irc.Message{Command: "PING", Params: []string{"server"}}
	assert.Equal(t, msg.String(), (&Event{Message: msg}).String())
	assert.Equal(t, "", (&Event{}).String())
}
