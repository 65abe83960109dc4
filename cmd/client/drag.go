package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/cbodonnell/jigsaw/pkg/interaction"
	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/observer"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
)

const dragSteps = 30

// simulateDrags picks up a random piece, carries it to a random point and
// drops it, count times.
func simulateDrags(ctx context.Context, ic *interaction.Context, o *observer.Observer, playground puzzle.Container, rng *rand.Rand, count int) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for done := 0; done < count; {
		snapshot := o.Snapshot()
		if snapshot == nil || snapshot.Len() == 0 {
			if !wait(ctx, ticker) {
				return
			}
			continue
		}

		// grab near the piece's top-left so the pointer lands inside its box
		piece := snapshot.Pieces[rng.Intn(snapshot.Len())]
		fromX, fromY := piece.X+1, piece.Y+1
		index, ok, err := ic.PointerDown(fromX, fromY)
		if err != nil {
			log.Warn("Simulated drag failed: %v", err)
			return
		}
		if !ok {
			if !wait(ctx, ticker) {
				return
			}
			continue
		}

		toX := playground.X + rng.Float64()*playground.Width
		toY := playground.Y + rng.Float64()*playground.Height
		for step := 1; step <= dragSteps; step++ {
			if !wait(ctx, ticker) {
				return
			}
			t := float64(step) / dragSteps
			if err := ic.PointerMove(ctx, fromX+(toX-fromX)*t, fromY+(toY-fromY)*t); err != nil {
				log.Error("Failed to move piece %d: %v", index, err)
			}
		}
		if err := ic.PointerUp(ctx); err != nil {
			log.Error("Failed to drop piece %d: %v", index, err)
		}
		done++
		log.Debug("Simulated drag %d/%d moved piece %d", done, count, index)
	}
}

func wait(ctx context.Context, ticker *time.Ticker) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
		return true
	}
}
