package network

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/queue"
	"nhooyr.io/websocket"
)

// WSClient represents a WebSocket client.
type WSClient struct {
	serverURL    string
	format       messages.Format
	messageQueue queue.Queue
	conn         *websocket.Conn
}

// NewWSClient creates a new WebSocket client. Decoded server messages are
// put on messageQueue.
func NewWSClient(serverURL string, format messages.Format, messageQueue queue.Queue) *WSClient {
	return &WSClient{
		serverURL:    serverURL,
		format:       format,
		messageQueue: messageQueue,
	}
}

// Connect establishes a connection to the WebSocket server.
func (c *WSClient) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("failed to parse server url: %v", err)
	}
	q := u.Query()
	q.Set("format", string(c.format))
	u.RawQuery = q.Encode()

	log.Info("Connecting to WebSocket server at %s", u.String())
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %v", err)
	}
	conn.SetReadLimit(messages.MessageBufferSize)
	c.conn = conn
	return nil
}

// HandleMessages reads from the server until the connection closes or ctx
// is cancelled.
func (c *WSClient) HandleMessages(ctx context.Context) error {
	for {
		_, b, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Trace("Connection closed by server")
				return nil
			}
			return fmt.Errorf("failed to read from WebSocket server: %v", err)
		}

		if err := c.handleMessage(b); err != nil {
			log.Error("Failed to handle message: %v", err)
		}
	}
}

// handleMessage processes a received message.
func (c *WSClient) handleMessage(b []byte) error {
	msg, err := messages.DeserializeMessage(c.format, b)
	if err != nil {
		return fmt.Errorf("failed to deserialize message: %v", err)
	}
	log.Trace("Received message from WebSocket server of type %s", msg.Type)

	switch msg.Type {
	case messages.MessageTypeServerState:
		if err := c.messageQueue.Enqueue(msg); err != nil {
			return fmt.Errorf("failed to enqueue message: %v", err)
		}
	default:
		return fmt.Errorf("received unexpected message type from WebSocket server: %s", msg.Type)
	}

	return nil
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.conn == nil {
		log.Warn("WebSocket connection is already closed")
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// SendMessage sends a message to the WebSocket server. Writes are safe
// from multiple goroutines.
func (c *WSClient) SendMessage(ctx context.Context, msg *messages.Message) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	b, err := messages.SerializeMessage(c.format, msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	typ := websocket.MessageText
	if c.format.Binary() {
		typ = websocket.MessageBinary
	}
	if err := c.conn.Write(ctx, typ, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}
