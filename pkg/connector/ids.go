// Copyright 2024-2026 Aiku AI

package connector

import (
	"fmt"
	"strconv"
	"strings"
)

// Redis keys shared with the producers and consumers on the other side of
// the bridge. Changing any of these breaks the wire contract.
const (
	CommandQueueKey    = "irc-write"
	HistoryKey         = "irc-read"
	SequenceCounterKey = "irc-read-cnt"
	NotifyChannel      = "irc-read"
)

// MakeHistoryRecord formats an inbound event for the history list.
func MakeHistoryRecord(seq int64, text string) string {
	return strconv.FormatInt(seq, 10) + " " + text
}

// ParseHistoryRecord splits a history list entry back into its sequence
// number and rendered event.
func ParseHistoryRecord(record string) (int64, string, error) {
	seqStr, text, ok := strings.Cut(record, " ")
	if !ok {
		return 0, "", fmt.Errorf("history record %q has no sequence separator", record)
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("history record %q has invalid sequence: %w", record, err)
	}
	return seq, text, nil
}
