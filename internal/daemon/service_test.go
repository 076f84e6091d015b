package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/theirongolddev/ocburn/internal/opencode"
	"github.com/theirongolddev/ocburn/internal/plugin"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedSource returns the scripted streams in order, then blocks until ctx ends.
type scriptedSource struct {
	mu      sync.Mutex
	streams []func() (<-chan opencode.Event, error)
	calls   int
}

func (s *scriptedSource) Events(ctx context.Context) (<-chan opencode.Event, error) {
	s.mu.Lock()
	s.calls++
	var next func() (<-chan opencode.Event, error)
	if len(s.streams) > 0 {
		next, s.streams = s.streams[0], s.streams[1:]
	}
	s.mu.Unlock()

	if next != nil {
		return next()
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func stream(evs ...opencode.Event) func() (<-chan opencode.Event, error) {
	return func() (<-chan opencode.Event, error) {
		ch := make(chan opencode.Event, len(evs))
		for _, ev := range evs {
			ch <- ev
		}
		close(ch)
		return ch, nil
	}
}

func failing(err error) func() (<-chan opencode.Event, error) {
	return func() (<-chan opencode.Event, error) { return nil, err }
}

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
}

func (h *recordingHandler) HandleEvent(_ context.Context, ev opencode.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, ev.Type)
	if ev.Type == "bad" {
		return errors.New("handler failed")
	}
	return nil
}

func (h *recordingHandler) InFlight() int { return 0 }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

type fixedCounts struct{}

func (fixedCounts) Counts() (int, int, error) { return 3, 7, nil }

func newService(src EventSource, h Handler) *Service {
	return New(Config{Backoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, OpencodeURL: "http://oc"}, Deps{
		Events:  src,
		Handler: h,
		Ledger:  fixedCounts{},
		Log:     zap.NewNop(),
	})
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{}, Deps{})
	assert.Equal(t, DefaultAddr, s.cfg.Addr)
	assert.Equal(t, DefaultEventsBuffer, s.cfg.EventsBuffer)
	assert.Equal(t, DefaultBackoff, s.cfg.Backoff)
	assert.Equal(t, DefaultMaxBackoff, s.cfg.MaxBackoff)
}

func TestRecord_RingBuffer(t *testing.T) {
	s := New(Config{EventsBuffer: 2}, Deps{})

	s.Record(plugin.Activity{Kind: plugin.ActivityToast, SessionID: "a"})
	s.Record(plugin.Activity{Kind: plugin.ActivityRecord, SessionID: "b"})
	s.Record(plugin.Activity{Kind: plugin.ActivityToast, SessionID: "c"})

	s.mu.RLock()
	defer s.mu.RUnlock()

	require.Len(t, s.events, 2)
	assert.Equal(t, int64(2), s.events[0].Seq)
	assert.Equal(t, "c", s.events[1].Activity.SessionID)
	assert.NotEqual(t, s.events[0].ID, s.events[1].ID)
	assert.Equal(t, int64(2), s.counters.Toasts)
	assert.Equal(t, int64(1), s.counters.Records)
}

func TestFollow_ReconnectsAndDispatches(t *testing.T) {
	src := &scriptedSource{streams: []func() (<-chan opencode.Event, error){
		failing(errors.New("connection refused")),
		stream(opencode.Event{Type: "message.updated"}, opencode.Event{Type: "bad"}),
		stream(opencode.Event{Type: "session.idle"}),
	}}
	h := &recordingHandler{}
	s := newService(src, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.follow(ctx)
	}()

	require.Eventually(t, func() bool { return h.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	s.handlers.Wait()

	st := s.snapshotStatus()
	assert.Equal(t, int64(3), st.Counters.EventsReceived)
	assert.Equal(t, int64(2), st.Counters.EventsHandled)
	assert.Equal(t, int64(1), st.Counters.HandlerErrors)
	assert.GreaterOrEqual(t, st.Counters.Reconnects, int64(2))
	assert.Equal(t, "session.idle", st.LastEventType)
	assert.NotEmpty(t, st.LastError)
	assert.False(t, st.Connected)
}

func TestHandlers_StatusAndEvents(t *testing.T) {
	s := newService(&scriptedSource{}, &recordingHandler{})
	s.Record(plugin.Activity{Kind: plugin.ActivityToast, SessionID: "ses_1", Message: "Session: $1.0000"})
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "http://oc", st.OpencodeURL)
	assert.Equal(t, 1, st.EventCount)
	assert.Equal(t, 3, st.LedgerSessions)
	assert.Equal(t, 7, st.LedgerToasts)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	var events []Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "toast", events[0].Type)
	assert.Equal(t, "Session: $1.0000", events[0].Activity.Message)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStream(t *testing.T) {
	s := newService(&scriptedSource{}, &recordingHandler{})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	_, _ = r.ReadString('\n')

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.subs) == 1
	}, time.Second, 5*time.Millisecond)
	s.Record(plugin.Activity{Kind: plugin.ActivityRecord, SessionID: "ses_2"})

	var frame []string
	for len(frame) < 3 {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		frame = append(frame, strings.TrimSuffix(line, "\n"))
	}
	assert.True(t, strings.HasPrefix(frame[0], "id: "))
	assert.Equal(t, "event: record", frame[1])
	assert.Contains(t, frame[2], `"sessionID":"ses_2"`)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	src := &scriptedSource{streams: []func() (<-chan opencode.Event, error){
		stream(opencode.Event{Type: "message.updated"}),
	}}
	h := &recordingHandler{}
	s := newService(src, h)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	client := &http.Client{Transport: tr, Timeout: 2 * time.Second}

	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return h.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
