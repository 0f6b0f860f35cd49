package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cbodonnell/dropfour/pkg/messages"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestClient upgrades a loopback connection and registers it with the
// manager, returning the registered client.
func dialTestClient(t *testing.T, cm *ClientManager) *Client {
	t.Helper()

	added := make(chan *Client, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade connection: %v", err)
			added <- nil
			return
		}
		client, err := cm.AddClient(conn)
		if err != nil {
			t.Errorf("failed to add client: %v", err)
			added <- nil
			return
		}
		added <- client
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	client := <-added
	require.NotNil(t, client)
	return client
}

func TestClientManager_AddAndRemove(t *testing.T) {
	cm := NewClientManager()
	client := dialTestClient(t, cm)

	assert.NotZero(t, client.ID)
	assert.Equal(t, 1, cm.Count())

	cm.RemoveClient(client.ID)
	assert.Equal(t, 0, cm.Count())

	// Removing twice is a no-op.
	cm.RemoveClient(client.ID)
	assert.Equal(t, 0, cm.Count())
}

func TestClientManager_SendToUnknownClient(t *testing.T) {
	cm := NewClientManager()
	cm.Send(42, &messages.Message{Type: "event"})
}

// Concurrent sends racing a removal must never reach the closed channel.
// Broadcasts run on read-loop and timer goroutines while disconnects close
// the client from another, so this interleaving happens in normal operation.
func TestClientManager_SendDuringRemove(t *testing.T) {
	cm := NewClientManager()
	client := dialTestClient(t, cm)

	msg := &messages.Message{Type: "event"}
	start := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 1000; i++ {
				cm.Send(client.ID, msg)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		cm.RemoveClient(client.ID)
	}()

	close(start)
	wg.Wait()

	assert.Equal(t, 0, cm.Count())
	// Sends after removal are dropped.
	cm.Send(client.ID, msg)
}
