package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubSender struct {
	name   string
	events []*Event
	err    error
	panics bool
}

func (s *stubSender) Name() string { return s.name }

func (s *stubSender) Send(_ context.Context, event *Event) error {
	if s.panics {
		panic("sender blew up")
	}

	s.events = append(s.events, event)

	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_DeliversToAllSenders(t *testing.T) {
	d := NewDispatcher(discardLogger())

	first := &stubSender{name: "first"}
	second := &stubSender{name: "second"}
	d.Register(first)
	d.Register(second)

	event := NewEvent(EventBackup).WithCounts(3, 0)
	d.Dispatch(context.Background(), event)

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.True(t, first.events[0].Success)
}

func TestDispatcher_FailureDoesNotStopOthers(t *testing.T) {
	d := NewDispatcher(discardLogger())

	broken := &stubSender{name: "broken", err: errors.New("delivery refused")}
	working := &stubSender{name: "working"}
	d.Register(broken)
	d.Register(working)

	d.Dispatch(context.Background(), NewEvent(EventVerify))

	require.Len(t, working.events, 1)
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	d := NewDispatcher(discardLogger())

	d.Register(&stubSender{name: "panicky", panics: true})

	survivor := &stubSender{name: "survivor"}
	d.Register(survivor)

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), NewEvent(EventRestore))
	})

	require.Len(t, survivor.events, 1)
}

func TestEvent_Builders(t *testing.T) {
	event := NewEvent(EventBackup).
		WithRepository("octocat/hello-world").
		WithCounts(2, 1).
		WithError(errors.New("one clone failed"))

	require.Equal(t, EventBackup, event.Type)
	require.Equal(t, "octocat/hello-world", event.Repository)
	require.Equal(t, 2, event.Succeeded)
	require.Equal(t, 1, event.Failed)
	require.False(t, event.Success)
	require.Equal(t, "one clone failed", event.Error)
	require.False(t, event.Timestamp.IsZero())
}

func TestEvent_WithCounts_Success(t *testing.T) {
	event := NewEvent(EventBackup).WithCounts(5, 0)
	require.True(t, event.Success)

	event = NewEvent(EventBackup).WithCounts(0, 0)
	require.True(t, event.Success)
}

func TestWebhookSender(t *testing.T) {
	var received Event

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL)
	require.Equal(t, "webhook", sender.Name())

	event := NewEvent(EventBackup).WithRepository("octocat/hello-world").WithCounts(1, 0)
	require.NoError(t, sender.Send(context.Background(), event))

	require.Equal(t, EventBackup, received.Type)
	require.Equal(t, "octocat/hello-world", received.Repository)
}

func TestWebhookSender_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL)

	err := sender.Send(context.Background(), NewEvent(EventBackup))
	require.Error(t, err)
}

func TestWebhookSender_UnreachableHost(t *testing.T) {
	sender := NewWebhookSender("http://127.0.0.1:1/unreachable")

	err := sender.Send(context.Background(), NewEvent(EventBackup))
	require.Error(t, err)
}
