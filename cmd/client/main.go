package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/jigsaw/pkg/client/network"
	"github.com/cbodonnell/jigsaw/pkg/geometry"
	"github.com/cbodonnell/jigsaw/pkg/interaction"
	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/messages"
	"github.com/cbodonnell/jigsaw/pkg/observer"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	"github.com/cbodonnell/jigsaw/pkg/queue"
	"github.com/cbodonnell/jigsaw/pkg/render"
	"github.com/cbodonnell/jigsaw/pkg/version"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const frameInterval = time.Second / 60

func main() {
	imagePath := flag.String("image", "", "Source image (png, jpeg, webp or bmp)")
	rows := flag.Int("rows", 4, "Number of rows")
	cols := flag.Int("cols", 4, "Number of columns")
	format := flag.String("format", "json", "Wire format (json, zstd or flatbuffers)")
	layout := flag.String("layout", "scatter", "Initial layout (grid, scatter or shuffle)")
	randomPolarity := flag.Bool("random-polarity", false, "Pick tab or slot per edge at random")
	imageRefs := flag.Bool("image-refs", true, "Attach rendered piece images to the seeded state")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	join := flag.Bool("join", false, "Join a running session instead of starting one")
	drags := flag.Int("drags", 0, "Number of simulated drags to perform")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting jigsaw client version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wireFormat, err := messages.ParseFormat(*format)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse format: %v", err))
	}

	if *imagePath == "" {
		panic("--image must be set")
	}
	img, err := loadImage(*imagePath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load image: %v", err))
	}

	rng := rand.New(rand.NewSource(*seed))
	var opts []geometry.Option
	if *randomPolarity {
		opts = append(opts, geometry.WithRandomPolarity(rng))
	}
	pieces, err := geometry.Generate(img, *rows, *cols, opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to generate pieces: %v", err))
	}
	log.Info("Generated %d pieces", len(pieces))

	// twice the image in each direction leaves room to scatter
	bounds := img.Bounds()
	playground := puzzle.Container{
		Width:  float64(bounds.Dx() * 2),
		Height: float64(bounds.Dy() * 2),
	}

	serverURL := os.Getenv("JIGSAW_SERVER_URL")
	if serverURL == "" {
		serverURL = network.DefaultServerURL
	}

	serverMessageQueue := queue.NewInMemoryQueue(1024)
	networkManager := network.NewNetworkManager(network.NewNetworkManagerOptions{
		ServerURL:    serverURL,
		Format:       wireFormat,
		MessageQueue: serverMessageQueue,
	})
	if err := networkManager.Start(ctx); err != nil {
		panic(fmt.Sprintf("Failed to start network manager: %v", err))
	}
	defer networkManager.Stop()

	o := observer.NewObserver(networkManager)
	if !*join {
		initial, err := seedState(img, pieces, *layout, playground, rng, *imageRefs)
		if err != nil {
			panic(fmt.Sprintf("Failed to seed puzzle: %v", err))
		}
		if err := o.Start(ctx, initial); err != nil {
			panic(fmt.Sprintf("Failed to start session: %v", err))
		}
	}

	interactionContext, err := interaction.NewContext(interaction.NewContextOptions{
		Dragger:    o,
		Playground: playground,
		Pieces:     pieces,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create interaction context: %v", err))
	}

	if *drags > 0 {
		go simulateDrags(ctx, interactionContext, o, playground, rng, *drags)
	}

	if err := run(ctx, networkManager.Err(), serverMessageQueue, o, interactionContext); err != nil {
		log.Error("Client stopped: %v", err)
		os.Exit(1)
	}
	log.Info("Client stopped")
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %v", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	log.Debug("Decoded %s image of size %v", format, img.Bounds().Size())
	return img, nil
}

func seedState(img image.Image, pieces []geometry.PieceGeometry, name string, playground puzzle.Container, rng *rand.Rand, withImageRefs bool) (*puzzle.State, error) {
	var layout puzzle.Layout
	switch name {
	case "grid":
		layout = puzzle.GridLayout{}
	case "scatter":
		layout = puzzle.ScatterLayout{Container: playground, Rand: rng}
	case "shuffle":
		layout = puzzle.ShuffleLayout{Rand: rng}
	default:
		return nil, fmt.Errorf("unknown layout %q", name)
	}

	state, err := puzzle.Seed(pieces, layout)
	if err != nil {
		return nil, err
	}
	if withImageRefs {
		if err := render.ImageRefs(img, pieces, state); err != nil {
			return nil, fmt.Errorf("failed to render pieces: %v", err)
		}
	}
	return state, nil
}

// run applies server ticks to the observer once per frame until the
// connection or ctx ends. A connection closed by the server without an
// error is a clean stop.
func run(ctx context.Context, connErr <-chan error, serverMessageQueue queue.Queue, o *observer.Observer, ic *interaction.Context) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-connErr:
			if ok && err != nil {
				return err
			}
			log.Info("Server closed the connection")
			return nil
		case <-ticker.C:
			pending, err := serverMessageQueue.ReadAllMessages()
			if err != nil {
				log.Error("Failed to read server messages: %v", err)
				continue
			}
			for _, item := range pending {
				msg, ok := item.(*messages.Message)
				if !ok {
					log.Error("Failed to cast message to messages.Message")
					continue
				}
				if err := o.HandleMessage(msg); err != nil {
					log.Error("Failed to handle server message: %v", err)
				}
			}
			ic.Sync()
		}
	}
}
