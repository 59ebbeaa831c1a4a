package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"form-analytics-server/models"
)

type State int

const (
	// StateIdle means nothing has been fetched yet.
	StateIdle State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "idle"
}

// Snapshot is a consistent copy of the client's state.
type Snapshot struct {
	State   State
	FormID  string
	Summary *models.AnalyticsSummary
}

type Options struct {
	// APIURL is the REST base, e.g. http://localhost:8000/api
	APIURL string
	// WSURL is the notification channel, e.g. ws://localhost:8000/ws/analytics/
	WSURL      string
	Token      string
	HTTPClient *http.Client
	Log        *logrus.Entry
	// OnRender is called after every successful fetch.
	OnRender func(Snapshot)
}

// Client keeps one analytics summary current. It fetches on demand, on
// selection change, and whenever the server announces a new response.
type Client struct {
	opts Options
	http *http.Client
	log  *logrus.Entry

	mu      sync.Mutex
	state   State
	formID  string
	summary *models.AnalyticsSummary
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		opts: opts,
		http: httpClient,
		log:  log,
	}
}

func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, FormID: c.formID, Summary: c.summary}
}

// Select switches between the global view ("") and one form, then fetches.
func (c *Client) Select(ctx context.Context, formID string) error {
	c.mu.Lock()
	c.formID = formID
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh fetches the selected summary and replaces the current one. A
// failed fetch leaves the previous state untouched.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	formID := c.formID
	c.mu.Unlock()

	summary, err := c.fetch(ctx, formID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.formID != formID {
		// Selection moved on while we were fetching.
		c.mu.Unlock()
		return nil
	}
	c.summary = summary
	c.state = StateLoaded
	snap := Snapshot{State: c.state, FormID: c.formID, Summary: c.summary}
	c.mu.Unlock()

	if c.opts.OnRender != nil {
		c.opts.OnRender(snap)
	}
	return nil
}

// HandleEvent re-fetches when a frame announces a response relevant to the
// current selection. Other frames are ignored.
func (c *Client) HandleEvent(ctx context.Context, frame []byte) error {
	var msg struct {
		Type string               `json:"type"`
		Data models.ResponseEvent `json:"data"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	if msg.Type != models.EventNewResponse {
		return nil
	}

	c.mu.Lock()
	formID := c.formID
	c.mu.Unlock()
	if formID != "" && msg.Data.FormID != formID {
		return nil
	}
	return c.Refresh(ctx)
}

// Listen subscribes to the notification channel until ctx ends or the
// connection drops. A dropped connection is logged and not retried; the
// dashboard then only updates on manual Refresh.
func (c *Client) Listen(ctx context.Context) error {
	endpoint, err := c.socketURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.log.WithError(err).Warn("⚠️ Live updates unavailable, refresh manually")
		return nil
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).Warn("⚠️ Live updates lost, refresh manually")
			}
			return nil
		}
		if err := c.HandleEvent(ctx, frame); err != nil {
			c.log.WithError(err).Warn("⚠️ Failed to refresh after event")
		}
	}
}

func (c *Client) socketURL() (string, error) {
	u, err := url.Parse(c.opts.WSURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket url: %w", err)
	}
	if c.opts.Token != "" {
		q := u.Query()
		q.Set("token", c.opts.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, formID string) (*models.AnalyticsSummary, error) {
	endpoint := strings.TrimRight(c.opts.APIURL, "/") + "/analytics/"
	if formID != "" {
		endpoint += url.PathEscape(formID) + "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analytics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("analytics request failed: %s %s", resp.Status, body.Error)
	}

	var summary models.AnalyticsSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to decode analytics: %w", err)
	}
	return &summary, nil
}
