package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-analytics-server/models"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeAPI serves analytics summaries whose TotalResponses counts requests.
type fakeAPI struct {
	global atomic.Int64
	form   atomic.Int64
	fail   atomic.Bool
	token  string
	frames chan []byte
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{frames: make(chan []byte, 4)}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/analytics/", func(w http.ResponseWriter, r *http.Request) {
		if api.token != "" && r.Header.Get("Authorization") != "Bearer "+api.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if api.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"error":"boom"}`))
			return
		}
		formID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/analytics/"), "/")
		summary := models.AnalyticsSummary{FieldAnalytics: []models.FieldAnalytics{}}
		switch formID {
		case "":
			summary.TotalForms = 2
			summary.TotalResponses = api.global.Add(1)
		case "7":
			summary.TotalForms = 1
			summary.TotalResponses = api.form.Add(1)
			summary.ResponsesByForm = []models.FormResponseCount{{FormID: "7", FormTitle: "Pulse"}}
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"Form not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(summary)
	})
	mux.HandleFunc("/ws/analytics/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for frame := range api.frames {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func newTestClient(srv *httptest.Server, onRender func(Snapshot)) *Client {
	return NewClient(Options{
		APIURL:   srv.URL + "/api",
		WSURL:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analytics/",
		Log:      quietLog(),
		OnRender: onRender,
	})
}

func eventFrame(formID string) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"type": models.EventNewResponse,
		"data": models.ResponseEvent{FormID: formID, FormTitle: "Pulse", ResponseID: "1"},
	})
	return data
}

func TestClientIdleThenLoaded(t *testing.T) {
	_, srv := newFakeAPI(t)
	var renders atomic.Int32
	client := newTestClient(srv, func(Snapshot) { renders.Add(1) })

	assert.Equal(t, StateIdle, client.Snapshot().State)

	require.NoError(t, client.Refresh(context.Background()))
	snap := client.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, "", snap.FormID)
	assert.EqualValues(t, 1, snap.Summary.TotalResponses)
	assert.EqualValues(t, 1, renders.Load())
}

func TestClientFailedFetchKeepsState(t *testing.T) {
	api, srv := newFakeAPI(t)
	client := newTestClient(srv, nil)

	api.fail.Store(true)
	assert.Error(t, client.Refresh(context.Background()))
	assert.Equal(t, StateIdle, client.Snapshot().State)

	api.fail.Store(false)
	require.NoError(t, client.Refresh(context.Background()))
	api.fail.Store(true)
	assert.Error(t, client.Refresh(context.Background()))

	snap := client.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.EqualValues(t, 1, snap.Summary.TotalResponses)
}

func TestClientSelectRefetches(t *testing.T) {
	api, srv := newFakeAPI(t)
	client := newTestClient(srv, nil)
	ctx := context.Background()

	require.NoError(t, client.Refresh(ctx))
	require.NoError(t, client.Select(ctx, "7"))

	snap := client.Snapshot()
	assert.Equal(t, "7", snap.FormID)
	assert.Equal(t, 1, snap.Summary.TotalForms)
	assert.EqualValues(t, 1, api.form.Load())

	assert.Error(t, client.Select(ctx, "404"))
}

func TestHandleEventRespectsSelection(t *testing.T) {
	api, srv := newFakeAPI(t)
	client := newTestClient(srv, nil)
	ctx := context.Background()

	require.NoError(t, client.HandleEvent(ctx, eventFrame("3")))
	assert.EqualValues(t, 1, api.global.Load(), "global view refreshes on any form's event")

	require.NoError(t, client.Select(ctx, "7"))
	require.NoError(t, client.HandleEvent(ctx, eventFrame("3")))
	assert.EqualValues(t, 1, api.form.Load(), "other forms' events are ignored")

	require.NoError(t, client.HandleEvent(ctx, eventFrame("7")))
	assert.EqualValues(t, 2, api.form.Load())

	require.NoError(t, client.HandleEvent(ctx, []byte(`{"type":"pong"}`)))
	assert.Error(t, client.HandleEvent(ctx, []byte(`not json`)))
}

func TestListenRefreshesOnEvents(t *testing.T) {
	api, srv := newFakeAPI(t)
	var mu sync.Mutex
	var seen []int64
	client := newTestClient(srv, func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.Summary.TotalResponses)
		mu.Unlock()
	})

	api.frames <- eventFrame("7")
	api.frames <- eventFrame("7")
	close(api.frames)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// The server closes after two frames; Listen degrades and returns.
	require.NoError(t, client.Listen(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, 2}, seen)
	assert.Equal(t, StateLoaded, client.Snapshot().State)
}

func TestListenDegradesWhenUnreachable(t *testing.T) {
	client := NewClient(Options{
		APIURL: "http://127.0.0.1:1/api",
		WSURL:  "ws://127.0.0.1:1/ws/analytics/",
		Log:    quietLog(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, client.Listen(ctx))
	assert.Equal(t, StateIdle, client.Snapshot().State)
}

func TestClientSendsToken(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.token = "abc"

	anonymous := newTestClient(srv, nil)
	assert.Error(t, anonymous.Refresh(context.Background()))

	client := NewClient(Options{APIURL: srv.URL + "/api", Token: "abc", Log: quietLog()})
	require.NoError(t, client.Refresh(context.Background()))

	u, err := client.socketURL()
	require.NoError(t, err)
	assert.Equal(t, "token=abc", strings.SplitN(u, "?", 2)[1])
}
