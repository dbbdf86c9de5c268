// Package interop is the boundary used by a host runtime: every object is named by a Handle,
// every struct crossing the boundary has a fixed layout, and no call panics or aborts on bad
// input. Invalid handles and nil pointers are logged and the call returns a zero result.
package interop

import (
	"slices"
	"sync"

	"github.com/akmonengine/quill"
	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/debugdraw"
	"github.com/akmonengine/quill/logging"
	"github.com/akmonengine/quill/task"
	"github.com/go-gl/mathgl/mgl64"
)

type API struct {
	log       *logging.Logger
	scheduler *task.Scheduler

	worlds      *registry[*quill.World]
	shapes      *registry[actor.ShapeInterface]
	bodies      *registry[*quill.Body]
	constraints *registry[*quill.TrackedConstraint]

	// recordings holds the buffers handed to quill for each recording body
	mu         sync.Mutex
	recordings map[Handle][]quill.CollisionRecord
}

// New creates the API with its own scheduler. Close shuts the scheduler down.
func New(config task.Config, log *logging.Logger) *API {
	return &API{
		log:         log,
		scheduler:   task.NewScheduler(config, log),
		worlds:      newRegistry[*quill.World](),
		shapes:      newRegistry[actor.ShapeInterface](),
		bodies:      newRegistry[*quill.Body](),
		constraints: newRegistry[*quill.TrackedConstraint](),
		recordings:  make(map[Handle][]quill.CollisionRecord),
	}
}

func (a *API) Close() {
	defer a.guard("Close")
	if n := a.worlds.len(); n > 0 {
		a.log.Warnf("interop: closing with %d worlds alive", n)
	}
	a.scheduler.Shutdown()
}

// guard turns a panic into a logged error so it never crosses the boundary
func (a *API) guard(op string) {
	if r := recover(); r != nil {
		a.log.Errorf("interop: %s failed: %v", op, r)
	}
}

func (a *API) nilArgument(op, name string) {
	a.log.Errorf("interop: %s: %s is nil", op, name)
}

func (a *API) world(op string, h Handle) (*quill.World, bool) {
	world, ok := a.worlds.get(h)
	if !ok {
		a.log.Errorf("interop: %s: invalid world handle %d", op, h)
	}
	return world, ok
}

func (a *API) body(op string, h Handle) (*quill.Body, bool) {
	body, ok := a.bodies.get(h)
	if !ok {
		a.log.Errorf("interop: %s: invalid body handle %d", op, h)
	}
	return body, ok
}

// =============================================================================
// Scheduler and logging
// =============================================================================

func (a *API) SetThreads(n int) {
	defer a.guard("SetThreads")
	a.scheduler.SetThreads(n)
}

func (a *API) GetThreads() int {
	defer a.guard("GetThreads")
	return a.scheduler.GetThreads()
}

func (a *API) SetLogLevel(level logging.Level) {
	a.log.SetLevel(level)
}

// SetLogCallback hands every log message to fn, nil restores the default writer
func (a *API) SetLogCallback(fn func(level int32, message string)) {
	if fn == nil {
		a.log.Redirect(nil)
		return
	}
	a.log.Redirect(func(level logging.Level, message string) {
		fn(int32(level), message)
	})
}

// =============================================================================
// Worlds
// =============================================================================

func (a *API) CreateWorld(config quill.Config) Handle {
	defer a.guard("CreateWorld")

	world, err := quill.NewWorld(config, a.scheduler, a.log)
	if err != nil {
		a.log.Errorf("interop: CreateWorld: %v", err)
		return InvalidHandle
	}
	h, err := a.worlds.add(world)
	if err != nil {
		a.log.Errorf("interop: CreateWorld: %v", err)
		if err := world.Close(); err != nil {
			a.log.Errorf("interop: CreateWorld: %v", err)
		}
	}
	return h
}

// DestroyWorld fails while the world still has bodies
func (a *API) DestroyWorld(h Handle) bool {
	defer a.guard("DestroyWorld")

	world, ok := a.world("DestroyWorld", h)
	if !ok {
		return false
	}
	if err := world.Close(); err != nil {
		a.log.Errorf("interop: DestroyWorld: %v", err)
		return false
	}
	a.worlds.remove(h)
	return true
}

func (a *API) Process(h Handle, delta float32) bool {
	defer a.guard("Process")
	world, ok := a.world("Process", h)
	return ok && world.Process(float64(delta))
}

func (a *API) ProcessInBackground(h Handle, delta float32) bool {
	defer a.guard("ProcessInBackground")
	world, ok := a.world("ProcessInBackground", h)
	return ok && world.ProcessInBackground(float64(delta))
}

func (a *API) WaitForPhysicsToComplete(h Handle) {
	defer a.guard("WaitForPhysicsToComplete")
	if world, ok := a.world("WaitForPhysicsToComplete", h); ok {
		world.WaitForPhysicsToComplete()
	}
}

func (a *API) SetGravity(h Handle, gravity *Vec3) {
	defer a.guard("SetGravity")
	if gravity == nil {
		a.nilArgument("SetGravity", "gravity")
		return
	}
	if world, ok := a.world("SetGravity", h); ok {
		world.SetGravity(gravity.vec())
	}
}

func (a *API) RemoveGravity(h Handle) {
	defer a.guard("RemoveGravity")
	if world, ok := a.world("RemoveGravity", h); ok {
		world.RemoveGravity()
	}
}

func (a *API) DumpSystemState(h Handle, path string) bool {
	defer a.guard("DumpSystemState")
	world, ok := a.world("DumpSystemState", h)
	return ok && world.DumpSystemState(path) == nil
}

// =============================================================================
// Shapes
// =============================================================================

func (a *API) CreateBoxShape(halfExtents *Vec3) Handle {
	defer a.guard("CreateBoxShape")
	if halfExtents == nil {
		a.nilArgument("CreateBoxShape", "halfExtents")
		return InvalidHandle
	}
	extents := halfExtents.vec()
	if extents.X() <= 0 || extents.Y() <= 0 || extents.Z() <= 0 {
		a.log.Errorf("interop: CreateBoxShape: half extents must be positive, got %v", extents)
		return InvalidHandle
	}
	return a.addShape("CreateBoxShape", &actor.Box{HalfExtents: extents})
}

func (a *API) CreateSphereShape(radius float32) Handle {
	defer a.guard("CreateSphereShape")
	if radius <= 0 {
		a.log.Errorf("interop: CreateSphereShape: radius must be positive, got %v", radius)
		return InvalidHandle
	}
	return a.addShape("CreateSphereShape", &actor.Sphere{Radius: float64(radius)})
}

// CreatePlaneShape makes the plane normal.x + distance = 0 in body space
func (a *API) CreatePlaneShape(normal *Vec3, distance float32) Handle {
	defer a.guard("CreatePlaneShape")
	if normal == nil {
		a.nilArgument("CreatePlaneShape", "normal")
		return InvalidHandle
	}
	n := normal.vec()
	if n.Len() < 1e-6 {
		a.log.Errorf("interop: CreatePlaneShape: zero normal")
		return InvalidHandle
	}
	return a.addShape("CreatePlaneShape", &actor.Plane{Normal: n.Normalize(), Distance: float64(distance)})
}

func (a *API) addShape(op string, shape actor.ShapeInterface) Handle {
	h, err := a.shapes.add(shape)
	if err != nil {
		a.log.Errorf("interop: %s: %v", op, err)
	}
	return h
}

// DestroyShape forgets the handle. Bodies already created keep their shape.
func (a *API) DestroyShape(h Handle) {
	defer a.guard("DestroyShape")
	if _, ok := a.shapes.remove(h); !ok {
		a.log.Errorf("interop: DestroyShape: invalid shape handle %d", h)
	}
}

// =============================================================================
// Bodies
// =============================================================================

type bodyKind uint8

const (
	kindMoving bodyKind = iota
	kindStatic
	kindSensor
	kindMovingSensor
)

func (a *API) createBody(op string, kind bodyKind, worldHandle, shapeHandle Handle, position *Vec3, rotation *Quat, addToWorld bool) Handle {
	switch {
	case position == nil:
		a.nilArgument(op, "position")
		return InvalidHandle
	case rotation == nil:
		a.nilArgument(op, "rotation")
		return InvalidHandle
	}
	world, ok := a.world(op, worldHandle)
	if !ok {
		return InvalidHandle
	}
	shape, ok := a.shapes.get(shapeHandle)
	if !ok {
		a.log.Errorf("interop: %s: invalid shape handle %d", op, shapeHandle)
		return InvalidHandle
	}

	var body *quill.Body
	switch kind {
	case kindMoving:
		body = world.CreateMovingBody(shape, position.vec(), rotation.quat(), addToWorld)
	case kindStatic:
		body = world.CreateStaticBody(shape, position.vec(), rotation.quat(), addToWorld)
	case kindSensor, kindMovingSensor:
		body = world.CreateSensor(shape, position.vec(), rotation.quat(), kind == kindMovingSensor, addToWorld)
	}
	if body == nil {
		return InvalidHandle
	}
	h, err := a.bodies.add(body)
	if err != nil {
		a.log.Errorf("interop: %s: %v", op, err)
		if !body.InWorld() {
			world.AddBody(body, false)
		}
		world.DestroyBody(body)
	}
	return h
}

func (a *API) CreateMovingBody(world, shape Handle, position *Vec3, rotation *Quat, addToWorld bool) Handle {
	defer a.guard("CreateMovingBody")
	return a.createBody("CreateMovingBody", kindMoving, world, shape, position, rotation, addToWorld)
}

func (a *API) CreateStaticBody(world, shape Handle, position *Vec3, rotation *Quat, addToWorld bool) Handle {
	defer a.guard("CreateStaticBody")
	return a.createBody("CreateStaticBody", kindStatic, world, shape, position, rotation, addToWorld)
}

func (a *API) CreateSensor(world, shape Handle, position *Vec3, rotation *Quat, moving, addToWorld bool) Handle {
	defer a.guard("CreateSensor")
	kind := kindSensor
	if moving {
		kind = kindMovingSensor
	}
	return a.createBody("CreateSensor", kind, world, shape, position, rotation, addToWorld)
}

func (a *API) AddBody(h Handle, activate bool) {
	defer a.guard("AddBody")
	if body, ok := a.body("AddBody", h); ok {
		body.World().AddBody(body, activate)
	}
}

func (a *API) DetachBody(h Handle) {
	defer a.guard("DetachBody")
	if body, ok := a.body("DetachBody", h); ok {
		body.World().DetachBody(body)
	}
}

// DestroyBody destroys the body and invalidates its handle. Constraints on the body are
// destroyed with it.
func (a *API) DestroyBody(h Handle) {
	defer a.guard("DestroyBody")
	body, ok := a.body("DestroyBody", h)
	if !ok {
		return
	}

	constraints := slices.Clone(body.Constraints())
	body.World().DestroyBody(body)
	if !body.IsDestroyed() {
		return
	}

	for _, c := range constraints {
		if ch := a.constraints.handleOf(c); ch != InvalidHandle {
			a.constraints.remove(ch)
		}
	}
	a.bodies.remove(h)
	a.mu.Lock()
	delete(a.recordings, h)
	a.mu.Unlock()
}

func (a *API) ReadBodyTransform(h Handle, position *Vec3, rotation *Quat) bool {
	defer a.guard("ReadBodyTransform")
	if position == nil || rotation == nil {
		a.nilArgument("ReadBodyTransform", "output")
		return false
	}
	body, ok := a.body("ReadBodyTransform", h)
	if !ok {
		return false
	}
	p, r := body.World().ReadBodyTransform(body)
	*position, *rotation = toVec3(p), toQuat(r)
	return true
}

func (a *API) ReadBodyVelocity(h Handle, linear, angular *Vec3) bool {
	defer a.guard("ReadBodyVelocity")
	if linear == nil || angular == nil {
		a.nilArgument("ReadBodyVelocity", "output")
		return false
	}
	body, ok := a.body("ReadBodyVelocity", h)
	if !ok {
		return false
	}
	l, w := body.World().ReadBodyVelocity(body)
	*linear, *angular = toVec3(l), toVec3(w)
	return true
}

// withBodyVec3 resolves a body and a vector argument for the simple setters
func (a *API) withBodyVec3(op string, h Handle, v *Vec3, fn func(*quill.World, *quill.Body, mgl64.Vec3)) {
	if v == nil {
		a.nilArgument(op, "vector")
		return
	}
	if body, ok := a.body(op, h); ok {
		fn(body.World(), body, v.vec())
	}
}

func (a *API) SetBodyVelocity(h Handle, velocity *Vec3) {
	defer a.guard("SetBodyVelocity")
	a.withBodyVec3("SetBodyVelocity", h, velocity, (*quill.World).SetBodyVelocity)
}

func (a *API) SetBodyAngularVelocity(h Handle, velocity *Vec3) {
	defer a.guard("SetBodyAngularVelocity")
	a.withBodyVec3("SetBodyAngularVelocity", h, velocity, (*quill.World).SetBodyAngularVelocity)
}

func (a *API) GiveImpulse(h Handle, impulse *Vec3) {
	defer a.guard("GiveImpulse")
	a.withBodyVec3("GiveImpulse", h, impulse, (*quill.World).GiveImpulse)
}

func (a *API) GiveAngularImpulse(h Handle, impulse *Vec3) {
	defer a.guard("GiveAngularImpulse")
	a.withBodyVec3("GiveAngularImpulse", h, impulse, (*quill.World).GiveAngularImpulse)
}

func (a *API) SetBodyPositionAndRotation(h Handle, position *Vec3, rotation *Quat, activate bool) {
	defer a.guard("SetBodyPositionAndRotation")
	if position == nil || rotation == nil {
		a.nilArgument("SetBodyPositionAndRotation", "transform")
		return
	}
	if body, ok := a.body("SetBodyPositionAndRotation", h); ok {
		body.World().SetBodyPositionAndRotation(body, position.vec(), rotation.quat(), activate)
	}
}

func (a *API) SetBodyControl(h Handle, movementImpulse *Vec3, targetRotation *Quat, rotationRate float32) bool {
	defer a.guard("SetBodyControl")
	if movementImpulse == nil || targetRotation == nil {
		a.nilArgument("SetBodyControl", "control")
		return false
	}
	body, ok := a.body("SetBodyControl", h)
	return ok && body.World().SetBodyControl(body, movementImpulse.vec(), targetRotation.quat(), float64(rotationRate))
}

func (a *API) DisableBodyControl(h Handle) {
	defer a.guard("DisableBodyControl")
	if body, ok := a.body("DisableBodyControl", h); ok {
		body.World().DisableBodyControl(body)
	}
}

func (a *API) BodyIsActive(h Handle) bool {
	defer a.guard("BodyIsActive")
	body, ok := a.body("BodyIsActive", h)
	return ok && body.World().BodyIsActive(body)
}

func (a *API) SetBodyUserData(h Handle, data []byte) {
	defer a.guard("SetBodyUserData")
	if body, ok := a.body("SetBodyUserData", h); ok {
		body.SetUserData(data)
	}
}

// =============================================================================
// Collision toggles and recording
// =============================================================================

func (a *API) AddCollisionIgnore(h, other Handle, skipOther bool) {
	defer a.guard("AddCollisionIgnore")
	body, ok := a.body("AddCollisionIgnore", h)
	otherBody, otherOK := a.body("AddCollisionIgnore", other)
	if ok && otherOK {
		body.AddCollisionIgnore(otherBody, skipOther)
	}
}

func (a *API) RemoveCollisionIgnore(h, other Handle, skipOther bool) {
	defer a.guard("RemoveCollisionIgnore")
	body, ok := a.body("RemoveCollisionIgnore", h)
	otherBody, otherOK := a.body("RemoveCollisionIgnore", other)
	if ok && otherOK {
		body.RemoveCollisionIgnore(otherBody, skipOther)
	}
}

func (a *API) ClearCollisionIgnores(h Handle) {
	defer a.guard("ClearCollisionIgnores")
	if body, ok := a.body("ClearCollisionIgnores", h); ok {
		body.ClearCollisionIgnores()
	}
}

func (a *API) SetCollisionDisabledState(h Handle, disableAll bool) {
	defer a.guard("SetCollisionDisabledState")
	if body, ok := a.body("SetCollisionDisabledState", h); ok {
		body.SetCollisionDisabledState(disableAll)
	}
}

// SetCollisionFilter installs fn as the body's filter. fn runs on worker goroutines and
// receives handles; a panicking filter rejects the contact.
func (a *API) SetCollisionFilter(h Handle, fn func(self, other Handle) bool) {
	defer a.guard("SetCollisionFilter")
	if fn == nil {
		a.nilArgument("SetCollisionFilter", "filter")
		return
	}
	body, ok := a.body("SetCollisionFilter", h)
	if !ok {
		return
	}
	body.SetCollisionFilter(func(self, other *quill.Body) (accept bool) {
		defer a.guard("collision filter")
		return fn(a.bodies.handleOf(self), a.bodies.handleOf(other))
	})
}

func (a *API) RemoveCollisionFilter(h Handle) {
	defer a.guard("RemoveCollisionFilter")
	if body, ok := a.body("RemoveCollisionFilter", h); ok {
		body.RemoveCollisionFilter()
	}
}

// EnableCollisionRecording keeps up to capacity records per physics update for the body
func (a *API) EnableCollisionRecording(h Handle, capacity int, persist bool) {
	defer a.guard("EnableCollisionRecording")
	if capacity <= 0 {
		a.log.Errorf("interop: EnableCollisionRecording: capacity must be positive, got %d", capacity)
		return
	}
	body, ok := a.body("EnableCollisionRecording", h)
	if !ok {
		return
	}

	buffer := make([]quill.CollisionRecord, capacity)
	a.mu.Lock()
	a.recordings[h] = buffer
	a.mu.Unlock()
	body.EnableCollisionRecording(buffer, persist)
}

func (a *API) DisableCollisionRecording(h Handle) {
	defer a.guard("DisableCollisionRecording")
	body, ok := a.body("DisableCollisionRecording", h)
	if !ok {
		return
	}
	body.DisableCollisionRecording()
	a.mu.Lock()
	delete(a.recordings, h)
	a.mu.Unlock()
}

// ReadCollisionRecords copies the records of the last physics update into out and returns
// how many were copied, never more than len(out)
func (a *API) ReadCollisionRecords(h Handle, out []CollisionRecord) int {
	defer a.guard("ReadCollisionRecords")
	body, ok := a.body("ReadCollisionRecords", h)
	if !ok {
		return 0
	}

	records := body.RecordedCollisions()
	n := min(len(records), len(out))
	for i, record := range records[:n] {
		out[i] = CollisionRecord{
			Body1:            a.bodies.handleOf(record.Body1),
			Body2:            a.bodies.handleOf(record.Body2),
			SubShapeID1:      record.SubShapeID1,
			SubShapeID2:      record.SubShapeID2,
			PenetrationDepth: float32(record.PenetrationDepth),
			JustStarted:      boolFlag(record.JustStarted),
			Step:             record.Step,
			UserData1:        record.UserData1,
			UserData2:        record.UserData2,
		}
	}
	return n
}

// =============================================================================
// Constraints
// =============================================================================

func (a *API) CreateFixedConstraint(h, other Handle) Handle {
	defer a.guard("CreateFixedConstraint")
	body, ok := a.body("CreateFixedConstraint", h)
	otherBody, otherOK := a.body("CreateFixedConstraint", other)
	if !ok || !otherOK {
		return InvalidHandle
	}
	return a.trackConstraint(body.World().CreateFixedConstraint(body, otherBody))
}

func (a *API) CreateDistanceConstraint(h, other Handle, minDistance, maxDistance float32) Handle {
	defer a.guard("CreateDistanceConstraint")
	body, ok := a.body("CreateDistanceConstraint", h)
	otherBody, otherOK := a.body("CreateDistanceConstraint", other)
	if !ok || !otherOK {
		return InvalidHandle
	}
	return a.trackConstraint(body.World().CreateDistanceConstraint(body, otherBody, float64(minDistance), float64(maxDistance)))
}

func (a *API) CreateWorldConstraint(h Handle, anchor *Vec3) Handle {
	defer a.guard("CreateWorldConstraint")
	if anchor == nil {
		a.nilArgument("CreateWorldConstraint", "anchor")
		return InvalidHandle
	}
	body, ok := a.body("CreateWorldConstraint", h)
	if !ok {
		return InvalidHandle
	}
	return a.trackConstraint(body.World().CreateWorldConstraint(body, anchor.vec()))
}

func (a *API) trackConstraint(c *quill.TrackedConstraint) Handle {
	if c == nil {
		return InvalidHandle
	}
	h, err := a.constraints.add(c)
	if err != nil {
		a.log.Errorf("interop: %v", err)
		c.BodyA().World().DestroyConstraint(c)
	}
	return h
}

func (a *API) DestroyConstraint(h Handle) {
	defer a.guard("DestroyConstraint")
	c, ok := a.constraints.remove(h)
	if !ok {
		a.log.Errorf("interop: DestroyConstraint: invalid constraint handle %d", h)
		return
	}
	c.BodyA().World().DestroyConstraint(c)
}

// =============================================================================
// Ray casts
// =============================================================================

func (a *API) rayHit(hit quill.RayHit, length float64) RayHit {
	return RayHit{
		Body:       a.bodies.handleOf(hit.Body),
		SubShapeID: hit.SubShapeID,
		Fraction:   float32(hit.Fraction),
		Distance:   float32(hit.Fraction * length),
		UserData:   hit.UserData,
	}
}

func (a *API) CastRay(h Handle, start, endOffset *Vec3, hit *RayHit) bool {
	defer a.guard("CastRay")
	if start == nil || endOffset == nil || hit == nil {
		a.nilArgument("CastRay", "ray argument")
		return false
	}
	world, ok := a.world("CastRay", h)
	if !ok {
		return false
	}

	result, found := world.CastRay(start.vec(), endOffset.vec())
	if !found {
		return false
	}
	*hit = a.rayHit(result, endOffset.vec().Len())
	return true
}

// CastRayGetAllUserData writes the hits, nearest first, into hits and returns the count
func (a *API) CastRayGetAllUserData(h Handle, start, endOffset *Vec3, hits []RayHit) int {
	defer a.guard("CastRayGetAllUserData")
	if start == nil || endOffset == nil {
		a.nilArgument("CastRayGetAllUserData", "ray argument")
		return 0
	}
	world, ok := a.world("CastRayGetAllUserData", h)
	if !ok || len(hits) == 0 {
		return 0
	}

	results := make([]quill.RayHit, len(hits))
	n := world.CastRayGetAllUserData(start.vec(), endOffset.vec(), results)
	length := endOffset.vec().Len()
	for i := 0; i < n; i++ {
		hits[i] = a.rayHit(results[i], length)
	}
	return n
}

// =============================================================================
// Debug drawing
// =============================================================================

func (a *API) SetDebugDrawLevel(h Handle, level int32) {
	defer a.guard("SetDebugDrawLevel")
	if level < int32(debugdraw.LevelNone) || level > int32(debugdraw.LevelAll) {
		a.log.Errorf("interop: SetDebugDrawLevel: unknown level %d", level)
		return
	}
	if world, ok := a.world("SetDebugDrawLevel", h); ok {
		world.SetDebugDrawLevel(debugdraw.Level(level))
	}
}

func (a *API) SetDebugCameraLocation(h Handle, position *Vec3) {
	defer a.guard("SetDebugCameraLocation")
	if position == nil {
		a.nilArgument("SetDebugCameraLocation", "position")
		return
	}
	if world, ok := a.world("SetDebugCameraLocation", h); ok {
		world.SetDebugCameraLocation(position.vec())
	}
}

// SetDebugReceiver forwards debug batches to fn, nil detaches the receiver
func (a *API) SetDebugReceiver(h Handle, fn func(lines []DebugLine, triangles []DebugTriangle)) {
	defer a.guard("SetDebugReceiver")
	world, ok := a.world("SetDebugReceiver", h)
	if !ok {
		return
	}
	if fn == nil {
		world.SetDebugSink(nil)
		return
	}

	world.SetDebugSink(debugdraw.SinkFunc(func(batch debugdraw.Batch) {
		defer a.guard("debug receiver")
		lines := make([]DebugLine, len(batch.Lines))
		for i, line := range batch.Lines {
			lines[i] = DebugLine{From: toVec3(line.From), To: toVec3(line.To), Colour: toColour(line.Colour)}
		}
		triangles := make([]DebugTriangle, len(batch.Triangles))
		for i, tri := range batch.Triangles {
			triangles[i] = DebugTriangle{V1: toVec3(tri.V1), V2: toVec3(tri.V2), V3: toVec3(tri.V3), Colour: toColour(tri.Colour)}
		}
		fn(lines, triangles)
	}))
}

func (a *API) DrawDebug(h Handle) {
	defer a.guard("DrawDebug")
	if world, ok := a.world("DrawDebug", h); ok {
		world.DrawDebug()
	}
}
