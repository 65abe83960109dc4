package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
)

const (
	// FormatQueryParam selects the wire format of a connection
	FormatQueryParam = "format"
	// WriteTimeout bounds a single frame write
	WriteTimeout = 5 * time.Second
)

// WSServer represents a WebSocket server.
type WSServer struct {
	port int
	tls  *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port int
	TLS  *TLSConfig
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	return &WSServer{
		port: opts.Port,
		tls:  opts.TLS,
	}
}

// ConnectHandler registers a new connection and returns its client ID.
type ConnectHandler func(ctx context.Context, conn *websocket.Conn, format messages.Format, remoteAddr string) (uint32, error)

// DisconnectHandler is called once a connection's read loop ends.
type DisconnectHandler func(clientID uint32)

// MessageHandler is called for every decoded frame, in arrival order.
type MessageHandler func(ctx context.Context, message *messages.Message)

// Handler returns the upgrade handler. Each connection is served until the
// peer goes away or ctx is cancelled.
func (s *WSServer) Handler(ctx context.Context, connectHandler ConnectHandler, disconnectHandler DisconnectHandler, messageHandler MessageHandler) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		format, err := messages.ParseFormat(r.URL.Query().Get(FormatQueryParam))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Error("Failed to accept WebSocket connection: %v", err)
			return
		}
		conn.SetReadLimit(messages.MessageBufferSize)
		log.Debug("New WebSocket connection from %s using %s", r.RemoteAddr, format)

		s.handleWSConnection(ctx, conn, format, r.RemoteAddr, connectHandler, disconnectHandler, messageHandler)
	})
	return router
}

// Start starts the WebSocket server.
func (s *WSServer) Start(ctx context.Context, connectHandler ConnectHandler, disconnectHandler DisconnectHandler, messageHandler MessageHandler) {
	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(ctx, connectHandler, disconnectHandler, messageHandler),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
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
			return
		}
		log.Error("WebSocket server error: %v", err)
	}
}

// handleWSConnection handles a WebSocket connection.
func (s *WSServer) handleWSConnection(ctx context.Context, conn *websocket.Conn, format messages.Format, remoteAddr string, connectHandler ConnectHandler, disconnectHandler DisconnectHandler, messageHandler MessageHandler) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clientID, err := connectHandler(ctx, conn, format, remoteAddr)
	if err != nil {
		log.Error("Failed to connect client from %s: %v", remoteAddr, err)
		conn.Close(websocket.StatusInternalError, "failed to register client")
		return
	}
	defer func() {
		disconnectHandler(clientID)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		message, err := ReadMessageFromWS(ctx, conn, format)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				log.Trace("Connection for client %d closed by server", clientID)
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway:
				log.Trace("Connection closed for client %d", clientID)
			case errors.Is(err, errMalformedMessage):
				log.Warn("Discarding malformed message from client %d: %v", clientID, err)
				continue
			default:
				log.Error("Error reading WebSocket message from client %d: %v", clientID, err)
			}
			return
		}

		message.ClientID = clientID
		messageHandler(ctx, message)
	}
}

var errMalformedMessage = errors.New("malformed message")

// WriteMessageToWS writes a Message to a WebSocket connection
func WriteMessageToWS(ctx context.Context, conn *websocket.Conn, format messages.Format, msg *messages.Message) error {
	b, err := messages.SerializeMessage(format, msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}
	return WriteFrameToWS(ctx, conn, format, b)
}

// WriteFrameToWS writes an already serialized message.
func WriteFrameToWS(ctx context.Context, conn *websocket.Conn, format messages.Format, b []byte) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()

	typ := websocket.MessageText
	if format.Binary() {
		typ = websocket.MessageBinary
	}
	if err := conn.Write(ctx, typ, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}

// ReadMessageFromWS reads a Message from a WebSocket connection. Decoding
// failures wrap errMalformedMessage and leave the connection usable.
func ReadMessageFromWS(ctx context.Context, conn *websocket.Conn, format messages.Format) (*messages.Message, error) {
	_, b, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := messages.DeserializeMessage(format, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}

	return msg, nil
}
