// Package interaction turns pointer events into drags on an observer.
package interaction

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cbodonnell/jigsaw/pkg/geometry"
	"github.com/cbodonnell/jigsaw/pkg/log"
	"github.com/cbodonnell/jigsaw/pkg/puzzle"
	"github.com/solarlune/resolv"
)

const (
	pieceTag   = "piece"
	pointerTag = "pointer"

	defaultCellSize = 32
)

// Dragger is the part of an observer the pointer drives.
type Dragger interface {
	BeginDrag(index int) error
	Move(ctx context.Context, index int, x, y float64) error
	EndDrag(ctx context.Context) error
	Snapshot() *puzzle.State
}

// Context is the drag state of one session. Nothing in it is global, so
// several puzzles can be driven side by side.
type Context struct {
	dragger    Dragger
	playground puzzle.Container
	pieces     []geometry.PieceGeometry

	mu      sync.Mutex
	space   *resolv.Space
	objects []*resolv.Object
	byObj   map[*resolv.Object]int
	// zOrder lists piece indices bottom to top
	zOrder   []int
	dragging int
	grabX    float64
	grabY    float64
}

type NewContextOptions struct {
	Dragger    Dragger
	Playground puzzle.Container
	Pieces     []geometry.PieceGeometry
	// CellSize is the broad-phase grid cell in pixels.
	CellSize int
}

func NewContext(opts NewContextOptions) (*Context, error) {
	if opts.Playground.Width <= 0 || opts.Playground.Height <= 0 {
		return nil, fmt.Errorf("playground must have a positive size")
	}
	cellSize := opts.CellSize
	if cellSize <= 0 {
		cellSize = defaultCellSize
	}

	c := &Context{
		dragger:    opts.Dragger,
		playground: opts.Playground,
		pieces:     opts.Pieces,
		space:      resolv.NewSpace(int(math.Ceil(opts.Playground.Width)), int(math.Ceil(opts.Playground.Height)), cellSize, cellSize),
		objects:    make([]*resolv.Object, len(opts.Pieces)),
		byObj:      make(map[*resolv.Object]int, len(opts.Pieces)),
		zOrder:     make([]int, len(opts.Pieces)),
		dragging:   -1,
	}
	for i, p := range opts.Pieces {
		obj := resolv.NewObject(0, 0, p.Box.Width, p.Box.Height, pieceTag)
		c.space.Add(obj)
		c.objects[i] = obj
		c.byObj[obj] = i
		c.zOrder[i] = i
	}
	return c, nil
}

// Sync moves the hit boxes to the observer's current positions.
func (c *Context) Sync() {
	snapshot := c.dragger.Snapshot()
	if snapshot == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncLocked(snapshot)
}

func (c *Context) syncLocked(snapshot *puzzle.State) {
	for i, obj := range c.objects {
		if i >= snapshot.Len() {
			break
		}
		p := snapshot.Pieces[i]
		obj.Position.X = p.X - c.playground.X
		obj.Position.Y = p.Y - c.playground.Y
		obj.Update()
	}
}

// PieceAt returns the topmost piece whose box contains the point.
func (c *Context) PieceAt(x, y float64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pieceAtLocked(x, y)
}

func (c *Context) pieceAtLocked(x, y float64) (int, bool) {
	lx, ly := x-c.playground.X, y-c.playground.Y
	pointer := resolv.NewObject(lx, ly, 1, 1, pointerTag)
	c.space.Add(pointer)
	defer c.space.Remove(pointer)

	// resolv only narrows it down to shared cells
	candidates := make(map[int]struct{})
	if collision := pointer.Check(0, 0, pieceTag); collision != nil {
		for _, obj := range collision.Objects {
			if !contains(obj, lx, ly) {
				continue
			}
			if i, ok := c.byObj[obj]; ok {
				candidates[i] = struct{}{}
			}
		}
	}
	for z := len(c.zOrder) - 1; z >= 0; z-- {
		if _, ok := candidates[c.zOrder[z]]; ok {
			return c.zOrder[z], true
		}
	}
	return -1, false
}

func contains(obj *resolv.Object, x, y float64) bool {
	return x >= obj.Position.X && x < obj.Position.X+obj.Size.X &&
		y >= obj.Position.Y && y < obj.Position.Y+obj.Size.Y
}

// PointerDown starts dragging the topmost piece under the pointer. It
// reports false when the pointer hit nothing.
func (c *Context) PointerDown(x, y float64) (int, bool, error) {
	snapshot := c.dragger.Snapshot()
	if snapshot == nil {
		return -1, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dragging >= 0 {
		return -1, false, fmt.Errorf("already dragging piece %d", c.dragging)
	}
	c.syncLocked(snapshot)
	index, ok := c.pieceAtLocked(x, y)
	if !ok {
		return -1, false, nil
	}
	if err := c.dragger.BeginDrag(index); err != nil {
		return -1, false, fmt.Errorf("failed to begin drag: %v", err)
	}

	px, py, err := snapshot.Position(index)
	if err != nil {
		return -1, false, err
	}
	c.dragging = index
	c.grabX, c.grabY = x-px, y-py
	c.raiseLocked(index)
	log.Trace("Picked up piece %d at (%v, %v)", index, px, py)
	return index, true, nil
}

// PointerMove drags the held piece so the grab point stays under the
// pointer, clamped to the playground.
func (c *Context) PointerMove(ctx context.Context, x, y float64) error {
	c.mu.Lock()
	index := c.dragging
	if index < 0 {
		c.mu.Unlock()
		return nil
	}
	px, py := c.clampLocked(index, x-c.grabX, y-c.grabY)
	obj := c.objects[index]
	obj.Position.X = px - c.playground.X
	obj.Position.Y = py - c.playground.Y
	obj.Update()
	c.mu.Unlock()

	return c.dragger.Move(ctx, index, px, py)
}

// PointerUp drops the held piece, if any.
func (c *Context) PointerUp(ctx context.Context) error {
	c.mu.Lock()
	if c.dragging < 0 {
		c.mu.Unlock()
		return nil
	}
	c.dragging = -1
	c.mu.Unlock()

	return c.dragger.EndDrag(ctx)
}

// Dragging returns the piece being dragged.
func (c *Context) Dragging() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging, c.dragging >= 0
}

// ZOrder returns piece indices from bottom to top.
func (c *Context) ZOrder() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	order := make([]int, len(c.zOrder))
	copy(order, c.zOrder)
	return order
}

func (c *Context) raiseLocked(index int) {
	for z, i := range c.zOrder {
		if i == index {
			c.zOrder = append(c.zOrder[:z], c.zOrder[z+1:]...)
			c.zOrder = append(c.zOrder, index)
			return
		}
	}
}

func (c *Context) clampLocked(index int, x, y float64) (float64, float64) {
	box := c.pieces[index].Box
	maxX := c.playground.X + c.playground.Width - box.Width
	maxY := c.playground.Y + c.playground.Height - box.Height
	return clamp(x, c.playground.X, maxX), clamp(y, c.playground.Y, maxY)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
