package websocket

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

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

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub("analytics", quietLog())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func testClient(id string, buffer int) *Client {
	return &Client{ID: id, send: make(chan []byte, buffer)}
}

func sampleEvent() models.ResponseEvent {
	return models.ResponseEvent{
		FormID:      "1",
		FormTitle:   "Customer Feedback Survey",
		ResponseID:  "42",
		SubmittedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestHubJoinIsIdempotent(t *testing.T) {
	hub, _ := startHub(t)
	c := testClient("a", 4)

	hub.Join(c)
	hub.Join(c)

	assert.Eventually(t, func() bool { return hub.Members() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubLeaveWithoutMembershipIsNoop(t *testing.T) {
	hub, _ := startHub(t)
	member := testClient("member", 4)
	stranger := testClient("stranger", 4)

	hub.Join(member)
	hub.Leave(stranger)
	assert.Eventually(t, func() bool { return hub.Members() == 1 }, time.Second, 10*time.Millisecond)

	hub.Leave(member)
	hub.Leave(member)
	assert.Eventually(t, func() bool { return hub.Members() == 0 }, time.Second, 10*time.Millisecond)

	_, open := <-member.send
	assert.False(t, open)
}

func TestHubBroadcastReachesEveryMember(t *testing.T) {
	hub, _ := startHub(t)
	first := testClient("first", 4)
	second := testClient("second", 4)
	hub.Join(first)
	hub.Join(second)

	require.NoError(t, hub.Broadcast(context.Background(), NewEventMessage(sampleEvent())))

	for _, c := range []*Client{first, second} {
		msg := receive(t, c)
		assert.Equal(t, models.EventNewResponse, msg.Type)
		data, ok := msg.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "1", data["form_id"])
		assert.Equal(t, "42", data["response_id"])
		assert.Equal(t, "Customer Feedback Survey", data["form_title"])
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)
	fast := testClient("fast", 4)
	slow := testClient("slow", 0)
	hub.Join(fast)
	hub.Join(slow)

	require.NoError(t, hub.Broadcast(context.Background(), NewEventMessage(sampleEvent())))

	receive(t, fast)
	assert.Eventually(t, func() bool { return hub.Members() == 1 }, time.Second, 10*time.Millisecond)
	_, open := <-slow.send
	assert.False(t, open)
}

func TestHubLateJoinerMissesEarlierBroadcast(t *testing.T) {
	hub, _ := startHub(t)
	early := testClient("early", 4)
	hub.Join(early)

	require.NoError(t, hub.Broadcast(context.Background(), NewEventMessage(sampleEvent())))
	receive(t, early)

	late := testClient("late", 4)
	hub.Join(late)
	assert.Eventually(t, func() bool { return hub.Members() == 2 }, time.Second, 10*time.Millisecond)
	assert.Len(t, late.send, 0)
}

func TestHubStopClosesMembers(t *testing.T) {
	hub, cancel := startHub(t)
	c := testClient("a", 4)
	hub.Join(c)

	cancel()

	select {
	case _, open := <-c.send:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("member was not released on stop")
	}

	// Join and Leave return instead of blocking once the hub is gone.
	done := make(chan struct{})
	go func() {
		hub.Join(testClient("b", 1))
		hub.Leave(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Join blocked on a stopped hub")
	}
}
