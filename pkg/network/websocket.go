package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/dropfour/pkg/log"
	"github.com/cbodonnell/dropfour/pkg/messages"
	"github.com/gorilla/websocket"
)

// MessageHandler handles an intent received from a client.
type MessageHandler func(clientID uint32, msg *messages.Message)

// DisconnectHandler handles a client connection going away.
type DisconnectHandler func(clientID uint32)

// WSServer represents a WebSocket server.
type WSServer struct {
	port          int
	clientManager *ClientManager
	tls           *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port          int
	ClientManager *ClientManager
	TLS           *TLSConfig
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	return &WSServer{
		port:          opts.Port,
		clientManager: opts.ClientManager,
		tls:           opts.TLS,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Start starts the WebSocket server. It blocks until the listener fails or
// the context is cancelled.
func (s *WSServer) Start(ctx context.Context, messageHandler MessageHandler, disconnectHandler DisconnectHandler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("Failed to upgrade to WebSocket: %v", err)
			return
		}
		log.Debug("New WebSocket connection from %s", conn.RemoteAddr().String())
		go s.handleWSConnection(conn, messageHandler, disconnectHandler)
	})

	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return nil
		}
		return fmt.Errorf("websocket server error: %v", err)
	}
	return nil
}

// handleWSConnection reads intents from a connection until it closes.
// Intents are dispatched in connection order so a client's own messages
// are never reordered.
func (s *WSServer) handleWSConnection(conn *websocket.Conn, messageHandler MessageHandler, disconnectHandler DisconnectHandler) {
	client, err := s.clientManager.AddClient(conn)
	if err != nil {
		log.Error("Failed to add client: %v", err)
		conn.Close()
		return
	}

	defer func() {
		s.clientManager.RemoveClient(client.ID)
		disconnectHandler(client.ID)
		log.Debug("Connection closed for client %d", client.ID)
	}()

	for {
		msg := &messages.Message{}
		if err := conn.ReadJSON(msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error("Error reading WebSocket message from client %d: %v", client.ID, err)
			}
			return
		}
		messageHandler(client.ID, msg)
	}
}
