package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/queue"
)

const (
	DefaultServerURL = "ws://localhost:8080"
)

// NetworkManager owns the observer's connection to the authority.
type NetworkManager struct {
	wsClient        *WSClient
	cancelClientCtx context.CancelFunc
	clientWaitGroup *sync.WaitGroup
	errChan         chan error
}

type NewNetworkManagerOptions struct {
	ServerURL    string
	Format       messages.Format
	MessageQueue queue.Queue
}

// NewNetworkManager creates a new network manager.
func NewNetworkManager(opts NewNetworkManagerOptions) *NetworkManager {
	serverURL := opts.ServerURL
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	return &NetworkManager{
		wsClient:        NewWSClient(serverURL, opts.Format, opts.MessageQueue),
		clientWaitGroup: &sync.WaitGroup{},
		errChan:         make(chan error, 1),
	}
}

// Start connects and begins reading in the background. Errors from the
// read loop are reported on Err.
func (m *NetworkManager) Start(ctx context.Context) error {
	if err := m.wsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to start WebSocket client: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancelClientCtx = cancel

	m.clientWaitGroup.Add(1)
	go func() {
		defer m.clientWaitGroup.Done()
		if err := m.wsClient.HandleMessages(ctx); err != nil {
			m.errChan <- err
		}
		close(m.errChan)
	}()

	return nil
}

// Err is closed when the read loop ends and carries its error, if any.
func (m *NetworkManager) Err() <-chan error {
	return m.errChan
}

func (m *NetworkManager) SendMessage(ctx context.Context, msg *messages.Message) error {
	return m.wsClient.SendMessage(ctx, msg)
}

// Stop closes the connection and waits for the read loop to exit.
func (m *NetworkManager) Stop() {
	if err := m.wsClient.Close(); err != nil {
		log.Debug("Failed to close WebSocket client: %v", err)
	}
	if m.cancelClientCtx != nil {
		m.cancelClientCtx()
	}
	m.clientWaitGroup.Wait()
}
