// Package quill wraps the solver into a simulation world: fixed timestep stepping on a task
// scheduler, reference counted body and constraint handles, per body collision filtering and
// bounded collision recording, body control, ray casts and debug drawing.
package quill

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/constraint"
	"github.com/akmonengine/quill/debugdraw"
	"github.com/akmonengine/quill/logging"
	"github.com/akmonengine/quill/solver"
	"github.com/akmonengine/quill/task"
	"github.com/go-gl/mathgl/mgl64"
)

var ErrBodiesRemain = errors.New("quill: bodies remain in the world")

// Stats is a snapshot of the world counters
type Stats struct {
	Bodies           int
	Constraints      int
	ControlledBodies int
	Step             uint32
	LeftoverTime     float64
	LastStepError    solver.StepError
}

// World is the simulation. Body, constraint and control changes are made by the goroutine that
// owns the World, never while a background step is in flight.
type World struct {
	config    Config
	log       *logging.Logger
	scheduler *task.Scheduler
	system    *solver.System
	listener  *ContactListener

	bodyCount   int
	constraints []*TrackedConstraint

	frameTime           float64
	leftover            float64
	step                atomic.Uint32
	reoptimizeCountdown int
	lastStepError       atomic.Uint32
	background          *task.Job

	controlLock spinLock
	controlled  []*Body

	debug debugState
}

// NewWorld builds a world stepping on scheduler. The scheduler is shared, not owned.
func NewWorld(config Config, scheduler *task.Scheduler, log *logging.Logger) (*World, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if scheduler == nil {
		return nil, fmt.Errorf("%w: nil scheduler", ErrInvalidConfig)
	}

	w := &World{
		config:              config,
		log:                 log,
		scheduler:           scheduler,
		system:              solver.New(config.solverSettings()),
		listener:            newContactListener(log),
		frameTime:           config.FrameTime(),
		reoptimizeCountdown: config.BroadPhaseOptimizeInterval,
	}
	w.debug.recorder = debugdraw.NewRecorder(time.Duration(float64(time.Second) / max(config.DebugDrawRate, 1e-3)))
	w.debug.maxDistance = config.DebugDrawMaxDistance

	w.system.SetContactListener(w.listener)
	w.system.AddStepListener(solver.StepListenerFunc(w.performPhysicsStepOperations))

	return w, nil
}

func (w *World) Config() Config {
	return w.config
}

func (w *World) Logger() *logging.Logger {
	return w.log
}

// Close checks that the world is empty and idle
func (w *World) Close() error {
	if w.background != nil {
		w.log.Errorf("quill: closing world while a background step is in flight")
		w.WaitForPhysicsToComplete()
	}
	if w.bodyCount > 0 {
		w.log.Errorf("quill: closing world with %d bodies", w.bodyCount)
		return fmt.Errorf("%w: %d", ErrBodiesRemain, w.bodyCount)
	}
	return nil
}

// =============================================================================
// Bodies
// =============================================================================

// CreateBody creates a body from explicit settings, nil when the settings are rejected
func (w *World) CreateBody(settings solver.BodySettings, addToWorld bool) *Body {
	if settings.Shape == nil {
		w.log.Errorf("quill: cannot create body without a shape")
		return nil
	}

	handle := newBody(w, solver.InvalidBodyID)
	settings.UserData = handle

	id, err := w.system.CreateBody(settings)
	switch {
	case errors.Is(err, solver.ErrBodyTableFull):
		w.log.Fatalf("quill: out of body slots: %v", err)
		return nil
	case err != nil:
		w.log.Errorf("quill: cannot create body: %v", err)
		return nil
	}

	handle.id = id
	w.bodyCount++
	if addToWorld {
		w.AddBody(handle, true)
	}
	return handle
}

func (w *World) CreateMovingBody(shape actor.ShapeInterface, position mgl64.Vec3, rotation mgl64.Quat, addToWorld bool) *Body {
	settings := solver.DefaultBodySettings(shape, position, rotation, actor.BodyTypeDynamic, solver.LayerMoving)
	return w.CreateBody(settings, addToWorld)
}

func (w *World) CreateStaticBody(shape actor.ShapeInterface, position mgl64.Vec3, rotation mgl64.Quat, addToWorld bool) *Body {
	settings := solver.DefaultBodySettings(shape, position, rotation, actor.BodyTypeStatic, solver.LayerNonMoving)
	return w.CreateBody(settings, addToWorld)
}

// CreateSensor creates a body that reports contacts without pushing back. A moving sensor is
// kinematic and can be driven by velocity.
func (w *World) CreateSensor(shape actor.ShapeInterface, position mgl64.Vec3, rotation mgl64.Quat, moving, addToWorld bool) *Body {
	motion := actor.BodyTypeStatic
	if moving {
		motion = actor.BodyTypeKinematic
	}
	settings := solver.DefaultBodySettings(shape, position, rotation, motion, solver.LayerSensor)
	return w.CreateBody(settings, addToWorld)
}

// AddBody puts a created or detached body back into the simulation
func (w *World) AddBody(body *Body, activate bool) {
	switch {
	case body == nil:
		w.log.Errorf("quill: AddBody with a nil body")
		return
	case body.world != w:
		w.log.Errorf("quill: body %v belongs to another world", body.id)
		return
	case body.destroyed:
		w.log.Errorf("quill: cannot add destroyed body %v", body.id)
		return
	case body.inWorld:
		w.log.Errorf("quill: body %v is already in the world", body.id)
		return
	}

	if err := w.system.AddBody(body.id, activate); err != nil {
		w.log.Errorf("quill: cannot add body: %v", err)
		return
	}
	body.inWorld = true
	body.active = activate
	body.updateFlags()

	for _, c := range body.constraints {
		c.attachToWorld()
	}
}

// DetachBody takes the body out of the simulation without destroying it
func (w *World) DetachBody(body *Body) {
	if body == nil || !body.inWorld {
		w.log.Errorf("quill: DetachBody on a body not in the world")
		return
	}

	for _, c := range body.constraints {
		c.detachFromWorld()
	}
	if err := w.system.RemoveBody(body.id); err != nil {
		w.log.Errorf("quill: cannot detach body: %v", err)
		return
	}
	body.inWorld = false
	body.active = false
	w.listener.forget(body)
}

// DestroyBody removes the constraints and control of a body in the world, then frees it.
// The handle stays valid for as long as other references exist.
func (w *World) DestroyBody(body *Body) {
	switch {
	case body == nil:
		w.log.Errorf("quill: DestroyBody with a nil body")
		return
	case body.destroyed:
		w.log.Errorf("quill: body %v destroyed twice", body.id)
		return
	case !body.inWorld:
		w.log.Errorf("quill: cannot destroy body %v, it is not in the world", body.id)
		return
	}

	for len(body.constraints) > 0 {
		w.DestroyConstraint(body.constraints[len(body.constraints)-1])
	}
	w.DisableBodyControl(body)

	if err := w.system.RemoveBody(body.id); err != nil {
		w.log.Errorf("quill: cannot remove body: %v", err)
		return
	}
	if err := w.system.DestroyBody(body.id); err != nil {
		w.log.Errorf("quill: cannot destroy body: %v", err)
		return
	}
	w.listener.forget(body)

	body.inWorld = false
	body.active = false
	body.destroyed = true
	w.bodyCount--
	body.Release()
}

// lockBody resolves the simulated body, logging when it is gone
func (w *World) lockBody(body *Body) (*solver.Body, bool) {
	if body == nil {
		w.log.Errorf("quill: nil body")
		return nil, false
	}
	if body.destroyed {
		w.log.Errorf("quill: body %v is destroyed", body.id)
		return nil, false
	}
	solverBody, err := w.system.Body(body.id)
	if err != nil {
		w.log.Errorf("quill: cannot lock body: %v", err)
		return nil, false
	}
	return solverBody, true
}

func (w *World) ReadBodyTransform(body *Body) (mgl64.Vec3, mgl64.Quat) {
	solverBody, ok := w.lockBody(body)
	if !ok {
		return mgl64.Vec3{}, mgl64.QuatIdent()
	}
	return solverBody.Position(), solverBody.Rotation()
}

// ReadBodyVelocity returns the linear and angular velocity
func (w *World) ReadBodyVelocity(body *Body) (mgl64.Vec3, mgl64.Vec3) {
	solverBody, ok := w.lockBody(body)
	if !ok {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	return solverBody.LinearVelocity(), solverBody.AngularVelocity()
}

func (w *World) SetBodyVelocity(body *Body, velocity mgl64.Vec3) {
	if solverBody, ok := w.lockBody(body); ok {
		solverBody.SetLinearVelocity(velocity)
	}
}

func (w *World) SetBodyAngularVelocity(body *Body, velocity mgl64.Vec3) {
	if solverBody, ok := w.lockBody(body); ok {
		solverBody.SetAngularVelocity(velocity)
	}
}

func (w *World) GiveImpulse(body *Body, impulse mgl64.Vec3) {
	if solverBody, ok := w.lockBody(body); ok {
		solverBody.Activate()
		solverBody.AddImpulse(impulse)
	}
}

func (w *World) GiveAngularImpulse(body *Body, impulse mgl64.Vec3) {
	if solverBody, ok := w.lockBody(body); ok {
		solverBody.Activate()
		solverBody.AddAngularImpulse(impulse)
	}
}

func (w *World) SetBodyPosition(body *Body, position mgl64.Vec3, activate bool) {
	if solverBody, ok := w.lockBody(body); ok {
		solverBody.SetPositionAndRotation(position, solverBody.Rotation(), activate)
	}
}

func (w *World) SetBodyPositionAndRotation(body *Body, position mgl64.Vec3, rotation mgl64.Quat, activate bool) {
	if solverBody, ok := w.lockBody(body); ok {
		solverBody.SetPositionAndRotation(position, rotation.Normalize(), activate)
	}
}

func (w *World) SetBodyAllowSleep(body *Body, allow bool) {
	if solverBody, ok := w.lockBody(body); ok {
		solverBody.SetAllowSleep(allow)
	}
}

// BodyIsActive reports whether the body is in the world and awake
func (w *World) BodyIsActive(body *Body) bool {
	if body == nil || body.destroyed {
		return false
	}
	solverBody, err := w.system.Body(body.id)
	return err == nil && solverBody.IsActive()
}

// =============================================================================
// Constraints
// =============================================================================

func (w *World) trackConstraint(bodyA, bodyB *Body, joint *constraint.PointJoint) *TrackedConstraint {
	c := newTrackedConstraint(w, bodyA, bodyB, joint)
	w.constraints = append(w.constraints, c)
	c.attachToWorld()
	return c
}

// CreateFixedConstraint locks b to a at their current relative pose
func (w *World) CreateFixedConstraint(a, b *Body) *TrackedConstraint {
	solverA, okA := w.lockBody(a)
	solverB, okB := w.lockBody(b)
	if !okA || !okB {
		return nil
	}
	return w.trackConstraint(a, b, constraint.NewFixedJoint(solverA.RigidBody(), solverB.RigidBody()))
}

// CreateDistanceConstraint keeps the centres of a and b between minDistance and maxDistance
func (w *World) CreateDistanceConstraint(a, b *Body, minDistance, maxDistance float64) *TrackedConstraint {
	if minDistance < 0 || maxDistance < minDistance {
		w.log.Errorf("quill: invalid distance range [%v, %v]", minDistance, maxDistance)
		return nil
	}
	solverA, okA := w.lockBody(a)
	solverB, okB := w.lockBody(b)
	if !okA || !okB {
		return nil
	}
	return w.trackConstraint(a, b, constraint.NewDistanceJoint(solverA.RigidBody(), solverB.RigidBody(), minDistance, maxDistance))
}

// CreateWorldConstraint pins a to a world anchor
func (w *World) CreateWorldConstraint(a *Body, anchor mgl64.Vec3) *TrackedConstraint {
	solverA, ok := w.lockBody(a)
	if !ok {
		return nil
	}
	return w.trackConstraint(a, nil, constraint.NewPointJoint(solverA.RigidBody(), nil, anchor))
}

// DestroyConstraint removes the constraint from the world and both bodies, then drops the
// world's reference
func (w *World) DestroyConstraint(c *TrackedConstraint) {
	if c == nil {
		return
	}
	i := slices.Index(w.constraints, c)
	if i < 0 || c.removed {
		w.log.Errorf("quill: constraint is not registered in this world")
		return
	}
	w.constraints = slices.Delete(w.constraints, i, i+1)

	c.destroyByWorld()
	c.Release()
}

// =============================================================================
// Gravity
// =============================================================================

func (w *World) Gravity() mgl64.Vec3 {
	return w.system.Gravity()
}

func (w *World) SetGravity(gravity mgl64.Vec3) {
	w.system.SetGravity(gravity)
}

func (w *World) RemoveGravity() {
	w.system.SetGravity(mgl64.Vec3{})
}

// =============================================================================
// Stepping
// =============================================================================

// Process advances the simulation by delta seconds in fixed steps. It reports whether at least
// one step ran; the remainder is kept for the next call.
func (w *World) Process(delta float64) bool {
	if w.background != nil {
		w.log.Errorf("quill: Process called while a background step is in flight")
		w.WaitForPhysicsToComplete()
	}

	w.leftover += delta
	stepped := false
	for w.leftover >= w.frameTime {
		w.leftover -= w.frameTime
		w.stepPhysics(w.frameTime)
		stepped = true
	}
	return stepped
}

// ProcessInBackground is Process with the steps queued on the scheduler. Results must not be
// read before WaitForPhysicsToComplete returns.
func (w *World) ProcessInBackground(delta float64) bool {
	if w.background != nil {
		w.log.Errorf("quill: previous background step was not waited for")
		w.WaitForPhysicsToComplete()
	}

	w.leftover += delta
	steps := 0
	for w.leftover >= w.frameTime {
		w.leftover -= w.frameTime
		steps++
	}
	if steps == 0 {
		return false
	}

	frameTime := w.frameTime
	w.background = w.scheduler.CreateJob("physics", 0x3366ff, func() {
		for i_ := 0; i_ < steps; i_++ {
			w.stepPhysics(frameTime)
		}
	}, 0)
	return true
}

// WaitForPhysicsToComplete blocks until the background steps finished, helping the
// scheduler meanwhile
func (w *World) WaitForPhysicsToComplete() {
	if w.background == nil {
		return
	}
	w.background.Wait()
	w.background = nil
}

func (w *World) stepPhysics(dt float64) {
	w.reoptimizeCountdown--
	if w.reoptimizeCountdown <= 0 {
		w.system.OptimizeBroadPhase()
		w.reoptimizeCountdown = w.config.BroadPhaseOptimizeInterval
	}

	stepErr := w.system.Step(dt, w.config.CollisionSteps, w.scheduler)
	w.lastStepError.Store(uint32(stepErr))
	if stepErr != solver.StepErrorNone {
		w.log.Errorf("quill: physics step %d degraded: %v", w.step.Load(), stepErr)
	}

	w.listener.publish()
}

// performPhysicsStepOperations runs before every collision step of the solver
func (w *World) performPhysicsStepOperations(ctx solver.StepContext) {
	if ctx.Fresh {
		step := w.step.Add(1)
		if step == 0 {
			step = w.step.Add(1)
		}
		w.listener.beginStep(step)
	}

	w.applyBodyControls()
}

func (w *World) Stats() Stats {
	w.controlLock.Lock()
	controlled := len(w.controlled)
	w.controlLock.Unlock()

	return Stats{
		Bodies:           w.bodyCount,
		Constraints:      len(w.constraints),
		ControlledBodies: controlled,
		Step:             w.step.Load(),
		LeftoverTime:     w.leftover,
		LastStepError:    solver.StepError(w.lastStepError.Load()),
	}
}

// ContactListener exposes the listener installed on the solver
func (w *World) ContactListener() *ContactListener {
	return w.listener
}
