package network

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/messages"
	"github.com/gorilla/websocket"
)

const (
	// ClientIDMaxRetries represents the maximum number of retries when
	// generating a unique client ID
	ClientIDMaxRetries = 1024
	// ClientSendBufferSize is the size of each client's outbound buffer
	ClientSendBufferSize = 256
)

// Client represents a connected websocket client. The ID is the transient
// connection ref; it changes when a player reconnects.
type Client struct {
	ID   uint32
	conn *websocket.Conn
	send chan *messages.Message
}

// writePump serializes all writes to the connection. gorilla/websocket
// allows at most one concurrent writer per connection.
func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Debug("Failed to write message to client %d: %v", c.ID, err)
			return
		}
	}
}

// ClientManager manages connected clients.
type ClientManager struct {
	clients     map[uint32]*Client
	clientsLock sync.RWMutex
}

// NewClientManager creates a new ClientManager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[uint32]*Client),
	}
}

// AddClient registers a connection, assigns it a unique ID, and starts its
// write pump.
func (cm *ClientManager) AddClient(conn *websocket.Conn) (*Client, error) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	id, err := cm.generateUniqueID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate client ID: %v", err)
	}

	client := &Client{
		ID:   id,
		conn: conn,
		send: make(chan *messages.Message, ClientSendBufferSize),
	}
	cm.clients[id] = client
	go client.writePump()

	return client, nil
}

// RemoveClient removes a client and closes its send channel, which stops
// the write pump. It is a no-op for unknown IDs.
func (cm *ClientManager) RemoveClient(id uint32) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, ok := cm.clients[id]
	if !ok {
		return
	}
	delete(cm.clients, id)
	close(client.send)
}

// Send queues a message for the client. Messages to unknown clients are
// dropped, as are messages to clients whose buffer is full. The read lock is
// held across the channel send so RemoveClient cannot close the channel
// between the lookup and the send.
func (cm *ClientManager) Send(id uint32, msg *messages.Message) {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()

	client, ok := cm.clients[id]
	if !ok {
		log.Trace("Dropping %s message for unknown client %d", msg.Type, id)
		return
	}

	select {
	case client.send <- msg:
	default:
		log.Warn("Send buffer full for client %d, dropping %s message", id, msg.Type)
	}
}

// Count returns the number of connected clients.
func (cm *ClientManager) Count() int {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return len(cm.clients)
}

// generateUniqueID generates a unique client ID. The caller must hold the
// clients lock.
func (cm *ClientManager) generateUniqueID() (uint32, error) {
	for i := 0; i < ClientIDMaxRetries; i++ {
		id := rand.Uint32()
		if id == 0 {
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("exceeded %d retries", ClientIDMaxRetries)
}
