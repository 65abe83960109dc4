package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/queue"
	"github.com/cbodonnell/jigsaw/pkg/state"
	"nhooyr.io/websocket"
)

type NetworkManager struct {
	ClientManager *ClientManager
	MessageQueue  queue.Queue
	StateManager  state.StateManager
	WSServer      *WSServer
	logger        *log.Logger
}

type NewNetworkManagerOptions struct {
	ClientManager *ClientManager
	MessageQueue  queue.Queue
	StateManager  state.StateManager
	WSPort        int
	WSServerTLS   *TLSConfig
}

func NewNetworkManager(options NewNetworkManagerOptions) *NetworkManager {
	return &NetworkManager{
		ClientManager: options.ClientManager,
		MessageQueue:  options.MessageQueue,
		StateManager:  options.StateManager,
		WSServer: NewWSServer(NewWSServerOptions{
			Port: options.WSPort,
			TLS:  options.WSServerTLS,
		}),
		logger: log.With("network"),
	}
}

func (n *NetworkManager) Start(ctx context.Context) {
	go n.WSServer.Start(ctx, n.handleConnect, n.handleDisconnect, n.handleMessage)
}

func (n *NetworkManager) handleConnect(ctx context.Context, conn *websocket.Conn, format messages.Format, remoteAddr string) (uint32, error) {
	// the snapshot goes out before the client is registered, so no
	// broadcast tick can reach it first and be overwritten by older state
	if err := n.sendSnapshot(ctx, conn, format); err != nil {
		n.logger.Error("Failed to send snapshot to %s: %v", remoteAddr, err)
	}

	clientID, err := n.ClientManager.ConnectClient(conn, format, remoteAddr)
	if err != nil {
		return 0, fmt.Errorf("failed to connect client: %v", err)
	}
	n.logger.Info("Client %d connected from %s", clientID, remoteAddr)

	return clientID, nil
}

// sendSnapshot gives a late joiner the current state without waiting for
// the next tick. Nothing is sent while no session is running.
func (n *NetworkManager) sendSnapshot(ctx context.Context, conn *websocket.Conn, format messages.Format) error {
	if n.StateManager == nil {
		return nil
	}
	snapshot, err := n.StateManager.Get(ctx)
	if errors.Is(err, state.ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get snapshot: %v", err)
	}

	msg, err := messages.NewMessage(messages.MessageTypeServerState, &messages.ServerState{
		SessionID: snapshot.SessionID,
		Timestamp: snapshot.Timestamp,
		Puzzle:    snapshot.Puzzle.Pieces,
	})
	if err != nil {
		return fmt.Errorf("failed to build snapshot message: %v", err)
	}

	return WriteMessageToWS(ctx, conn, format, msg)
}

func (n *NetworkManager) handleDisconnect(clientID uint32) {
	n.ClientManager.DisconnectClient(clientID)
	n.logger.Info("Client %d disconnected", clientID)
}

func (n *NetworkManager) handleMessage(ctx context.Context, message *messages.Message) {
	if !n.ClientManager.Exists(message.ClientID) {
		n.logger.Warn("Received message from %d, but client is not connected", message.ClientID)
		return
	}

	switch message.Type {
	case messages.MessageTypeClientStart, messages.MessageTypeClientMove, messages.MessageTypeClientRelease:
		if err := n.MessageQueue.Enqueue(message); err != nil {
			n.logger.Error("Failed to enqueue message: %v", err)
		}
	default:
		n.logger.Warn("Discarding message of unknown type %q from client %d", message.Type, message.ClientID)
	}
}

// SendMessageToAll serializes msg once per wire format in use and writes it
// to every connected client.
func (n *NetworkManager) SendMessageToAll(ctx context.Context, msg *messages.Message) {
	frames := map[messages.Format][]byte{}
	for _, client := range n.ClientManager.GetClients() {
		b, ok := frames[client.Format]
		if !ok {
			var err error
			b, err = messages.SerializeMessage(client.Format, msg)
			if err != nil {
				n.logger.Error("Failed to serialize %s message as %s: %v", msg.Type, client.Format, err)
				continue
			}
			frames[client.Format] = b
		}

		if err := WriteFrameToWS(ctx, client.WSConn, client.Format, b); err != nil {
			n.logger.Error("Failed to send message to client %d: %v", client.ID, err)
		}
	}
}

func (n *NetworkManager) SendMessageToClient(ctx context.Context, clientID uint32, msg *messages.Message) error {
	client, err := n.ClientManager.GetClient(clientID)
	if err != nil {
		return fmt.Errorf("failed to get client %d: %v", clientID, err)
	}

	if err := WriteMessageToWS(ctx, client.WSConn, client.Format, msg); err != nil {
		return fmt.Errorf("failed to send message to client %d: %v", clientID, err)
	}

	return nil
}
