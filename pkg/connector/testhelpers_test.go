// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package connector

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/irc.v4"
)

var errFake = errors.New("fake failure")

// published records one Publish call.
type published struct {
	Channel string
	Value   string
}

// fakeStore is an in-memory Store with Redis list semantics. Individual
// operations can be made to fail.
type fakeStore struct {
	mu        sync.Mutex
	counters  map[string]int64
	lists     map[string][]string
	published []published
	popTimes  []time.Time
	closed    bool

	FailIncrement bool
	FailPush      bool
	FailTrim      bool
	FailPublish   bool
	FailPing      bool
	FailPop       bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		counters: make(map[string]int64),
		lists:    make(map[string][]string),
	}
}

func (s *fakeStore) BlockingPop(ctx context.Context, queue string, timeout time.Duration) ([]string, error) {
	s.mu.Lock()
	if s.FailPop {
		s.mu.Unlock()
		return nil, errFake
	}
	if list := s.lists[queue]; len(list) > 0 {
		value := list[0]
		s.lists[queue] = list[1:]
		s.popTimes = append(s.popTimes, time.Now())
		s.mu.Unlock()
		return []string{queue, value}, nil
	}
	s.mu.Unlock()

	// Nothing queued: behave like a BLPOP that times out.
	if err := sleepContext(ctx, timeout); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *fakeStore) Increment(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailIncrement {
		return 0, errFake
	}
	s.counters[key] += delta
	return s.counters[key], nil
}

func (s *fakeStore) Push(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPush {
		return errFake
	}
	s.lists[key] = append(s.lists[key], value)
	return nil
}

func (s *fakeStore) Trim(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTrim {
		return errFake
	}
	s.lists[key] = ltrim(s.lists[key], start, stop)
	return nil
}

// ltrim mirrors Redis LTRIM index handling.
func ltrim(list []string, start, stop int64) []string {
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}
	return append([]string(nil), list[start:stop+1]...)
}

func (s *fakeStore) Publish(_ context.Context, channel string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPublish {
		return errFake
	}
	var str string
	switch v := value.(type) {
	case int64:
		str = strconv.FormatInt(v, 10)
	case string:
		str = v
	default:
		str = "?"
	}
	s.published = append(s.published, published{Channel: channel, Value: str})
	return nil
}

func (s *fakeStore) Ping(_ context.Context) error {
	if s.FailPing {
		return errFake
	}
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStore) Enqueue(queue string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[queue] = append(s.lists[queue], values...)
}

func (s *fakeStore) List(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lists[key]...)
}

func (s *fakeStore) Counter(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key]
}

func (s *fakeStore) Published() []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]published(nil), s.published...)
}

func (s *fakeStore) PopTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.popTimes...)
}

func (s *fakeStore) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// factory hands out the same fakeStore to every loop.
func (s *fakeStore) factory() StoreFactory {
	return func(context.Context) (Store, error) { return s, nil }
}

// streamItem is one value yielded by fakeConn.Events.
type streamItem struct {
	evt *Event
	err error
}

// fakeConn is a scripted ProtocolConn. Each call to Events plays the next
// scripted stream; the last stream stays open until the context is done.
type fakeConn struct {
	mu          sync.Mutex
	streams     [][]streamItem
	streamIdx   int
	streamEnds  []time.Time
	calls       []string
	reconnectAt []time.Time
	sent        []string
	sendTimes   []time.Time

	SendErr      error
	ReconnectErr error
	IdentifyErr  error
}

func newFakeConn(streams ...[]streamItem) *fakeConn {
	return &fakeConn{streams: streams}
}

func (c *fakeConn) Identify(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "identify")
	return c.IdentifyErr
}

func (c *fakeConn) Reconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "reconnect")
	c.reconnectAt = append(c.reconnectAt, time.Now())
	return c.ReconnectErr
}

func (c *fakeConn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendTimes = append(c.sendTimes, time.Now())
	if c.SendErr != nil {
		return c.SendErr
	}
	c.sent = append(c.sent, line)
	return nil
}

func (c *fakeConn) Events(ctx context.Context) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		c.mu.Lock()
		idx := c.streamIdx
		c.streamIdx++
		var items []streamItem
		if idx < len(c.streams) {
			items = c.streams[idx]
		}
		last := idx >= len(c.streams)-1
		c.mu.Unlock()

		for _, item := range items {
			if !yield(item.evt, item.err) {
				return
			}
		}
		if last {
			<-ctx.Done()
			return
		}
		c.mu.Lock()
		c.streamEnds = append(c.streamEnds, time.Now())
		c.mu.Unlock()
	}
}

func (c *fakeConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeConn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConn) SendTimes() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.sendTimes...)
}

func (c *fakeConn) StreamEnds() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.streamEnds...)
}

func (c *fakeConn) ReconnectTimes() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.reconnectAt...)
}

// newEvent parses line into an Event.
func newEvent(t *testing.T, line string) *Event {
	t.Helper()
	msg, err := irc.ParseMessage(line)
	require.NoError(t, err)
	return &Event{Raw: line, Message: msg}
}

func events(t *testing.T, lines ...string) []streamItem {
	t.Helper()
	items := make([]streamItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, streamItem{evt: newEvent(t, line)})
	}
	return items
}

// testBridgeConfig uses short durations so loop tests stay fast.
func testBridgeConfig(historyLimit int) BridgeConfig {
	return BridgeConfig{
		HistoryLimit:      historyLimit,
		PopTimeout:        10 * time.Millisecond,
		FloodInterval:     20 * time.Millisecond,
		ReconnectCooldown: 30 * time.Millisecond,
	}
}

func newTestBridge(cfg BridgeConfig, conn ProtocolConn, store *fakeStore) *Bridge {
	return NewBridge(cfg, conn, store.factory(), nil, zerolog.Nop())
}

// runLoop starts fn in a goroutine and returns a stop function that
// cancels it and waits for it to return.
func runLoop(t *testing.T, fn func(ctx context.Context) error) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	var once sync.Once
	var result error
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case result = <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("loop did not stop after cancellation")
			}
		})
		return result
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}
