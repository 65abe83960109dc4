package workers

import (
	"context"
	"fmt"

	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
)

// Broadcaster delivers one message to every connected observer.
type Broadcaster interface {
	SendMessageToAll(ctx context.Context, msg *messages.Message)
}

type BroadcastMessageWorker struct {
	broadcaster          Broadcaster
	broadcastMessageChan <-chan BroadcastMessage
}

type BroadcastMessage struct {
	Type    messages.MessageType
	Message interface{}
}

type NewBroadcastMessageWorkerOptions struct {
	Broadcaster          Broadcaster
	BroadcastMessageChan <-chan BroadcastMessage
}

func NewBroadcastMessageWorker(opts NewBroadcastMessageWorkerOptions) *BroadcastMessageWorker {
	return &BroadcastMessageWorker{
		broadcaster:          opts.Broadcaster,
		broadcastMessageChan: opts.BroadcastMessageChan,
	}
}

func (w *BroadcastMessageWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.broadcastMessageChan:
			switch msg.Type {
			case messages.MessageTypeServerState:
				if err := w.handleServerState(ctx, msg); err != nil {
					log.Error("Failed to handle server state message: %v", err)
				}
			default:
				log.Error("Unknown server message type: %v", msg.Type)
			}
		}
	}
}

func (w *BroadcastMessageWorker) handleServerState(ctx context.Context, b BroadcastMessage) error {
	serverState, ok := b.Message.(*messages.ServerState)
	if !ok {
		return fmt.Errorf("failed to cast server state message")
	}

	msg, err := messages.NewMessage(messages.MessageTypeServerState, serverState)
	if err != nil {
		return fmt.Errorf("failed to build server state message: %v", err)
	}
	w.broadcaster.SendMessageToAll(ctx, msg)

	return nil
}
