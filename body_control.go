package quill

import (
	"math"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/akmonengine/quill/solver"
	"github.com/go-gl/mathgl/mgl64"
)

// spinLock guards the short body control traversal done inside every step
type spinLock struct {
	locked atomic.Bool
}

func (l *spinLock) Lock() {
	for !l.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.locked.Store(false)
}

// ControlState steers a dynamic body each step: an impulse, and an angular velocity turning it
// toward TargetRotation
type ControlState struct {
	TargetRotation  mgl64.Quat
	MovementImpulse mgl64.Vec3
	// RotationRate divides the angular velocity, larger turns slower
	RotationRate float64
}

// SetBodyControl enables or updates the control of body. rotationRate must be positive.
func (w *World) SetBodyControl(body *Body, movementImpulse mgl64.Vec3, targetRotation mgl64.Quat, rotationRate float64) bool {
	if rotationRate <= 0 {
		w.log.Errorf("quill: body control rotation rate must be positive, got %v", rotationRate)
		return false
	}
	if _, ok := w.lockBody(body); !ok {
		return false
	}

	w.controlLock.Lock()
	defer w.controlLock.Unlock()

	if body.EnableBodyControlIfNotAlready() {
		w.controlled = append(w.controlled, body)
	}
	body.control.MovementImpulse = movementImpulse
	body.control.TargetRotation = targetRotation.Normalize()
	body.control.RotationRate = rotationRate
	return true
}

func (w *World) DisableBodyControl(body *Body) {
	if body == nil {
		return
	}

	w.controlLock.Lock()
	defer w.controlLock.Unlock()

	if body.DisableBodyControl() {
		if i := slices.Index(w.controlled, body); i >= 0 {
			w.controlled = slices.Delete(w.controlled, i, i+1)
		}
	}
}

// applyBodyControls runs inside the step, on the stepping goroutine
func (w *World) applyBodyControls() {
	w.controlLock.Lock()
	defer w.controlLock.Unlock()

	for _, body := range w.controlled {
		solverBody, err := w.system.Body(body.id)
		if err != nil || !solverBody.InWorld() {
			continue
		}
		w.applyControl(solverBody, body.control)
	}
}

func (w *World) applyControl(body *solver.Body, control *ControlState) {
	impulse := control.MovementImpulse
	if limit := w.config.MaxBodyControlImpulse; limit > 0 && impulse.Len() > limit {
		impulse = impulse.Normalize().Mul(limit)
	}
	if impulse.Len() > 0 {
		body.Activate()
		body.AddImpulse(impulse)
	}

	body.SetAngularVelocity(rotationTowards(body.Rotation(), control.TargetRotation).Mul(1 / control.RotationRate))
}

// rotationTowards returns axis * angle of the shortest rotation from current to target
func rotationTowards(current, target mgl64.Quat) mgl64.Vec3 {
	difference := target.Mul(current.Inverse()).Normalize()
	if difference.W < 0 {
		difference = difference.Scale(-1)
	}

	sinHalf := difference.V.Len()
	if sinHalf < 1e-9 {
		return mgl64.Vec3{}
	}
	angle := 2 * math.Atan2(sinHalf, difference.W)
	return difference.V.Mul(angle / sinHalf)
}
