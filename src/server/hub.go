package server

import (
	"context"
	"net/http"
	"time"

	"market-pipeline/src/models"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// heatmapTimeout bounds a heatmap request made over the websocket.
const heatmapTimeout = 2 * time.Minute

type subscription struct {
	client *Client
	symbol string
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop. It alone touches s.clients and
// client.symbol.
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.setConnections(len(s.clients))

		case client := <-s.unregister:
			s.drop(client)

		case sub := <-s.subscribe:
			if _, ok := s.clients[sub.client]; ok {
				sub.client.symbol = sub.symbol
			}

		case bundle := <-s.broadcast:
			msg := &models.MStreamMessage{Type: "BUNDLE", Bundle: bundle}
			for client := range s.clients {
				if client.symbol != bundle.Symbol {
					continue
				}
				select {
				case client.send <- msg:
				default:
					// Client too slow, disconnect so the hub never blocks
					s.Logger.Warning("Client %s too slow, disconnecting", client.id)
					s.drop(client)
				}
			}

		case <-s.done:
			for client := range s.clients {
				s.drop(client)
			}
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) drop(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.closed)
	s.setConnections(len(s.clients))
}

func (s *FastAPIServer) setConnections(n int) {
	s.connMutex.Lock()
	s.connections = n
	s.connMutex.Unlock()
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a bundle for the hub. A full queue drops the bundle; the
// next refresh supersedes it anyway.
func (s *FastAPIServer) Broadcast(bundle *models.MRefreshBundle) {
	select {
	case s.broadcast <- bundle:
	case <-s.done:
	default:
		s.Logger.Warning("Broadcast queue full, dropping bundle for %s", bundle.Symbol)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send:   make(chan *models.MStreamMessage, 64),
		closed: make(chan struct{}),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}
	s.Logger.Debug("Client %s connected from %s", client.id, c.ClientIP())

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage applies a subscribe command: the client starts receiving
// bundles for the symbol, gets the latest one right away and, when a period is
// given, the heatmap for it.
func (s *FastAPIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse command from %s: %v, disconnecting client", client.id, err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		client.deliver(&models.MStreamMessage{Type: "ERROR", Error: "unknown command " + cmd.Command})
		return
	}

	symbol := normalizeSymbol(cmd.Symbol)
	if symbol == "" {
		symbol = s.Config.Exchange.DefaultSymbol
	}

	select {
	case s.subscribe <- subscription{client: client, symbol: symbol}:
	case <-s.done:
		return
	}

	if b, ok := s.Pipeline.Latest(symbol); ok {
		client.deliver(&models.MStreamMessage{Type: "BUNDLE", Bundle: b})
	}

	if cmd.Period == "" {
		return
	}

	// Heatmap loads can take several pages; keep reading commands meanwhile
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), heatmapTimeout)
		defer cancel()

		res, err := s.Pipeline.Heatmap(ctx, symbol, cmd.Period)
		if err != nil {
			client.deliver(&models.MStreamMessage{Type: "ERROR", Error: err.Error()})
			return
		}
		client.deliver(&models.MStreamMessage{Type: "HEATMAP", Heatmap: &res})
	}()
}
