package quill

import (
	"fmt"
	"os"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/debugdraw"
	"github.com/akmonengine/quill/solver"
	"github.com/go-gl/mathgl/mgl64"
)

type debugState struct {
	recorder    *debugdraw.Recorder
	level       debugdraw.Level
	camera      mgl64.Vec3
	maxDistance float64
}

// SetDebugDrawLevel selects what DrawDebug emits. Contact drawing makes the contact listener
// keep a map of active contacts.
func (w *World) SetDebugDrawLevel(level debugdraw.Level) {
	w.debug.level = level
	w.listener.setTrackActive(level.Includes(debugdraw.LevelContacts))
}

func (w *World) DebugDrawLevel() debugdraw.Level {
	return w.debug.level
}

// SetDebugCameraLocation culls shape drawing beyond the configured distance from position
func (w *World) SetDebugCameraLocation(position mgl64.Vec3) {
	w.debug.camera = position
}

// SetDebugSink attaches the receiver of debug batches, nil detaches it
func (w *World) SetDebugSink(sink debugdraw.Sink) {
	w.debug.recorder.SetSink(sink)
}

// DrawDebug emits one batch when a sink is attached and the draw interval elapsed
func (w *World) DrawDebug() {
	if w.debug.level == debugdraw.LevelNone || !w.debug.recorder.Begin() {
		return
	}
	defer w.debug.recorder.Flush()

	recorder := w.debug.recorder
	if w.debug.level.Includes(debugdraw.LevelShapes) {
		for _, body := range w.system.ActiveBodies() {
			w.drawBody(recorder, body)
		}
	}

	if w.debug.level.Includes(debugdraw.LevelContacts) {
		for _, contact := range w.listener.activeContacts() {
			for _, point := range contact.Points {
				recorder.DrawArrow(point.Position, point.Position.Add(contact.Normal.Mul(0.3+point.Penetration)), debugdraw.ColourContact, 0.05)
			}
		}
	}

	if w.debug.level.Includes(debugdraw.LevelConstraints) {
		for _, c := range w.constraints {
			if !c.inWorld {
				continue
			}
			anchorA, anchorB := c.WorldAnchors()
			recorder.DrawLine(anchorA, anchorB, debugdraw.ColourConstraint)
		}
	}
}

func (w *World) drawBody(recorder *debugdraw.Recorder, body *solver.Body) {
	position := body.Position()

	colour := debugdraw.ColourActive
	switch {
	case body.IsSensor():
		colour = debugdraw.ColourSensor
	case body.MotionType() == actor.BodyTypeStatic:
		colour = debugdraw.ColourStatic
	case !body.IsActive():
		colour = debugdraw.ColourSleeping
	}

	switch shape := body.Shape().(type) {
	case *actor.Box:
		if position.Sub(w.debug.camera).Len() > w.debug.maxDistance+shape.HalfExtents.Len() {
			return
		}
		recorder.DrawBox(position, body.Rotation(), shape.HalfExtents, colour)
	case *actor.Sphere:
		if position.Sub(w.debug.camera).Len() > w.debug.maxDistance+shape.Radius {
			return
		}
		recorder.DrawWireSphere(position, shape.Radius, colour)
	case *actor.Plane:
		// A square of the plane around the point closest to the camera
		normal := shape.Normal
		distance := shape.Distance - normal.Dot(position)
		center := w.debug.camera.Sub(normal.Mul(normal.Dot(w.debug.camera) + distance))
		u, v := actor.TangentBasis(normal)
		size := w.debug.maxDistance
		corners := [4]mgl64.Vec3{
			center.Add(u.Mul(size)).Add(v.Mul(size)),
			center.Sub(u.Mul(size)).Add(v.Mul(size)),
			center.Sub(u.Mul(size)).Sub(v.Mul(size)),
			center.Add(u.Mul(size)).Sub(v.Mul(size)),
		}
		for i := range corners {
			recorder.DrawLine(corners[i], corners[(i+1)%4], colour)
		}
	}
}

// DumpSystemState writes the solver snapshot to path
func (w *World) DumpSystemState(path string) error {
	file, err := os.Create(path)
	if err != nil {
		w.log.Errorf("quill: cannot dump state: %v", err)
		return fmt.Errorf("quill: dumping state: %w", err)
	}
	defer file.Close()

	if err := w.system.SaveState(file); err != nil {
		w.log.Errorf("quill: cannot dump state: %v", err)
		return fmt.Errorf("quill: dumping state: %w", err)
	}
	w.log.Infof("quill: system state written to %s", path)
	return nil
}
