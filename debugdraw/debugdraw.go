// Package debugdraw collects debug lines and triangles from the world and hands them, at a
// bounded rate, to whatever renders them. No sink means nothing is collected.
package debugdraw

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

type Level uint8

const (
	LevelNone Level = iota
	LevelShapes
	LevelContacts
	LevelConstraints
	LevelAll
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelShapes:
		return "shapes"
	case LevelContacts:
		return "contacts"
	case LevelConstraints:
		return "constraints"
	case LevelAll:
		return "all"
	}
	return "unknown"
}

// Includes reports whether drawing at l covers what is drawn at other
func (l Level) Includes(other Level) bool {
	return other != LevelNone && l >= other
}

type Colour struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

var (
	ColourActive     = Colour{0.2, 0.9, 0.3, 1}
	ColourSleeping   = Colour{0.5, 0.5, 0.5, 1}
	ColourStatic     = Colour{0.3, 0.4, 0.9, 1}
	ColourSensor     = Colour{0.9, 0.8, 0.2, 0.5}
	ColourContact    = Colour{1, 0.2, 0.2, 1}
	ColourConstraint = Colour{0.9, 0.3, 0.9, 1}
)

type Line struct {
	From   mgl64.Vec3 `json:"from"`
	To     mgl64.Vec3 `json:"to"`
	Colour Colour     `json:"colour"`
}

type Triangle struct {
	V1     mgl64.Vec3 `json:"v1"`
	V2     mgl64.Vec3 `json:"v2"`
	V3     mgl64.Vec3 `json:"v3"`
	Colour Colour     `json:"colour"`
}

// Batch is everything drawn during one accepted frame
type Batch struct {
	Frame     uint64     `json:"frame"`
	Lines     []Line     `json:"lines"`
	Triangles []Triangle `json:"triangles"`
}

type Sink interface {
	Receive(batch Batch)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(batch Batch)

func (f SinkFunc) Receive(batch Batch) {
	f(batch)
}

// Recorder gathers one batch at a time. Begin opens a frame only when a sink is attached and
// the interval since the previous frame elapsed; draw calls outside an open frame are dropped.
type Recorder struct {
	mu       sync.Mutex
	sink     Sink
	interval time.Duration
	now      func() time.Time

	open    bool
	last    time.Time
	frames  uint64
	pending Batch
}

func NewRecorder(interval time.Duration) *Recorder {
	return &Recorder{interval: interval, now: time.Now}
}

// SetSink attaches a receiver, nil detaches it
func (r *Recorder) SetSink(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *Recorder) HasSink() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink != nil
}

func (r *Recorder) Begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sink == nil {
		return false
	}
	now := r.now()
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return false
	}

	r.last = now
	r.open = true
	r.frames++
	r.pending = Batch{Frame: r.frames}
	return true
}

// Flush sends the open frame to the sink
func (r *Recorder) Flush() {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		return
	}
	r.open = false
	batch, sink := r.pending, r.sink
	r.pending = Batch{}
	r.mu.Unlock()

	if sink != nil {
		sink.Receive(batch)
	}
}

func (r *Recorder) DrawLine(from, to mgl64.Vec3, colour Colour) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		r.pending.Lines = append(r.pending.Lines, Line{From: from, To: to, Colour: colour})
	}
}

func (r *Recorder) DrawTriangle(v1, v2, v3 mgl64.Vec3, colour Colour) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		r.pending.Triangles = append(r.pending.Triangles, Triangle{V1: v1, V2: v2, V3: v3, Colour: colour})
	}
}

func (r *Recorder) DrawArrow(from, to mgl64.Vec3, colour Colour, size float64) {
	r.DrawLine(from, to, colour)

	direction := to.Sub(from)
	if direction.Len() < 1e-9 {
		return
	}
	direction = direction.Normalize()
	side := direction.Cross(mgl64.Vec3{0, 1, 0})
	if side.Len() < 1e-6 {
		side = direction.Cross(mgl64.Vec3{1, 0, 0})
	}
	side = side.Normalize().Mul(size)
	back := to.Sub(direction.Mul(size))
	r.DrawLine(to, back.Add(side), colour)
	r.DrawLine(to, back.Sub(side), colour)
}

// DrawBox draws the twelve edges of an oriented box
func (r *Recorder) DrawBox(center mgl64.Vec3, rotation mgl64.Quat, halfExtents mgl64.Vec3, colour Colour) {
	var corners [8]mgl64.Vec3
	for i := range corners {
		local := mgl64.Vec3{halfExtents.X(), halfExtents.Y(), halfExtents.Z()}
		if i&1 != 0 {
			local[0] = -local[0]
		}
		if i&2 != 0 {
			local[1] = -local[1]
		}
		if i&4 != 0 {
			local[2] = -local[2]
		}
		corners[i] = center.Add(rotation.Rotate(local))
	}

	for i := range corners {
		for _, bit := range []int{1, 2, 4} {
			if j := i | bit; j != i {
				r.DrawLine(corners[i], corners[j], colour)
			}
		}
	}
}

// DrawWireSphere draws three great circles
func (r *Recorder) DrawWireSphere(center mgl64.Vec3, radius float64, colour Colour) {
	const segments = 16
	axes := [3][2]mgl64.Vec3{
		{{1, 0, 0}, {0, 1, 0}},
		{{0, 1, 0}, {0, 0, 1}},
		{{0, 0, 1}, {1, 0, 0}},
	}

	for _, axis := range axes {
		previous := center.Add(axis[0].Mul(radius))
		for i := 1; i <= segments; i++ {
			angle := 2 * math.Pi * float64(i) / segments
			point := center.Add(axis[0].Mul(radius * math.Cos(angle))).Add(axis[1].Mul(radius * math.Sin(angle)))
			r.DrawLine(previous, point, colour)
			previous = point
		}
	}
}
