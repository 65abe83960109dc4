package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/jigsaw/pkg/api"
	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/network"
	"github.com/cbodonnell/jigsaw/pkg/queue"
	"github.com/cbodonnell/jigsaw/pkg/session"
	"github.com/cbodonnell/jigsaw/pkg/state"
	"github.com/cbodonnell/jigsaw/pkg/version"
	"github.com/cbodonnell/jigsaw/pkg/workers"
)

func main() {
	wsPort := flag.Int("ws-port", 8080, "WebSocket port to listen on")
	apiPort := flag.Int("api-port", 8081, "API port to listen on")
	tickRate := flag.Int("tick-rate", 60, "Ticks per second")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	if *tickRate <= 0 {
		panic(fmt.Sprintf("Tick rate must be positive, got %d", *tickRate))
	}

	log.Info("Starting jigsaw server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wsTLS *network.TLSConfig
	var apiTLS *api.TLSConfig
	certFile := os.Getenv("JIGSAW_TLS_CERT_FILE")
	keyFile := os.Getenv("JIGSAW_TLS_KEY_FILE")
	if certFile != "" && keyFile != "" {
		wsTLS = &network.TLSConfig{CertFile: certFile, KeyFile: keyFile}
		apiTLS = &api.TLSConfig{CertFile: certFile, KeyFile: keyFile}
	}

	connectionEventQueue := queue.NewInMemoryQueue(1000)
	clientMessageQueue := queue.NewInMemoryQueue(10000)
	stateManager := state.NewInMemoryStateManager()

	networkManager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		ClientManager: network.NewClientManager(connectionEventQueue),
		MessageQueue:  clientMessageQueue,
		StateManager:  stateManager,
		WSPort:        *wsPort,
		WSServerTLS:   wsTLS,
	})
	networkManager.Start(ctx)

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:         *apiPort,
		TLS:          apiTLS,
		StateManager: stateManager,
	})
	go apiServer.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop API server: %v", err)
		}
	}()

	broadcastMessageChannelSize := 1
	broadcastMessageChan := make(chan workers.BroadcastMessage, broadcastMessageChannelSize)

	broadcastMessageWorker := workers.NewBroadcastMessageWorker(workers.NewBroadcastMessageWorkerOptions{
		Broadcaster:          networkManager,
		BroadcastMessageChan: broadcastMessageChan,
	})
	go broadcastMessageWorker.Start(ctx)

	authority := session.NewAuthority(session.NewAuthorityOptions{
		ClientMessageQueue:   clientMessageQueue,
		ConnectionEventQueue: connectionEventQueue,
		StateManager:         stateManager,
		BroadcastChan:        broadcastMessageChan,
		TickInterval:         time.Second / time.Duration(*tickRate),
	})

	log.Info("Starting authority at %d ticks per second", *tickRate)
	if err := authority.Start(ctx); err != nil {
		panic(fmt.Sprintf("Failed to start authority: %v", err))
	}
	log.Info("Server stopped")
}
