package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackcard-ai/concierge/internal/domain"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestHubStreamsEntries(t *testing.T) {
	t.Parallel()
	hub := NewHub(4, []string{"*"})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(&domain.EventLog{ID: 7, UserID: "auth0|alice", EventType: domain.EventTypeWearable, AgentDecision: domain.ActionGreen})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got domain.EventLog
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, domain.ActionGreen, got.AgentDecision)
}

func TestHubFiltersByUser(t *testing.T) {
	t.Parallel()
	hub := NewHub(4, []string{"*"})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "?user_id=auth0|bob")
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(&domain.EventLog{ID: 1, UserID: "auth0|alice"})
	hub.Publish(&domain.EventLog{ID: 2, UserID: "auth0|bob"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got domain.EventLog
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, int64(2), got.ID)
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()
	hub := NewHub(1, nil)
	sub := hub.subscribe("")
	defer hub.unsubscribe(sub)

	hub.Publish(&domain.EventLog{ID: 1})
	hub.Publish(&domain.EventLog{ID: 2})
	hub.Publish(nil)

	assert.Equal(t, uint64(1), hub.Dropped())
	assert.Equal(t, int64(1), (<-sub.ch).ID)
}

func TestOriginPatterns(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"*"}, originPatterns([]string{"https://app.example.com", "*"}))
	assert.Equal(t, []string{"app.example.com", "localhost:3000"},
		originPatterns([]string{"https://app.example.com", "http://localhost:3000"}))
}

func TestSubscribersGoneAfterDisconnect(t *testing.T) {
	t.Parallel()
	hub := NewHub(4, []string{"*"})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
