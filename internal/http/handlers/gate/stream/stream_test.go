package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/trial-gate/internal/lib/sl"
	"github.com/magabrotheeeer/trial-gate/internal/services/gate"
)

// scriptedWatcher отдаёт решения по одному, дожидаясь разрешения теста.
type scriptedWatcher struct {
	next     chan gate.Decision
	mu       sync.Mutex
	token    string
	finished chan struct{}
}

func (w *scriptedWatcher) Watch(ctx context.Context, token string, _ gate.Route, emit func(gate.Decision)) {
	w.mu.Lock()
	w.token = token
	w.mu.Unlock()
	defer close(w.finished)
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-w.next:
			emit(d)
		}
	}
}

func readEvent(t *testing.T, rd *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) == 0 {
				continue
			}
			return strings.Join(lines, "\n")
		}
		lines = append(lines, line)
	}
}

func TestStreamHandler(t *testing.T) {
	w := &scriptedWatcher{next: make(chan gate.Decision), finished: make(chan struct{})}
	srv := httptest.NewServer(New(sl.Discard(), w))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/?route=classroom&access_token=tok", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	rd := bufio.NewReader(resp.Body)

	w.next <- gate.Decision{Kind: gate.KindAllow}
	assert.Equal(t, "event: decision\ndata: {\"decision\":\"allow\"}", readEvent(t, rd))

	w.next <- gate.Decision{Kind: gate.KindBlocked, Reason: gate.ReasonTrialExpired, HomePath: "/"}
	assert.Equal(t, "event: decision\ndata: {\"decision\":\"blocked\",\"reason\":\"trial_expired\",\"home_path\":\"/\"}", readEvent(t, rd))

	w.mu.Lock()
	assert.Equal(t, "tok", w.token)
	w.mu.Unlock()

	cancel()
	select {
	case <-w.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("watch was not released after client disconnect")
	}
}

func TestStreamHandler_UnknownRoute(t *testing.T) {
	w := &scriptedWatcher{next: make(chan gate.Decision), finished: make(chan struct{})}
	rr := httptest.NewRecorder()
	New(sl.Discard(), w).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?route=library", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
