package solver

import (
	"fmt"
	"sync/atomic"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	bodyIndexBits      = 23
	bodyIndexMask      = 1<<bodyIndexBits - 1
	bodyGenerationMask = 0xFF

	// MaxBodyIndex is the largest number of body slots a System can hold
	MaxBodyIndex = bodyIndexMask
)

// BodyID packs a 23 bit slot index with an 8 bit generation. A destroyed body bumps the
// generation of its slot, so stale ids are detected instead of aliasing the next occupant.
type BodyID uint32

const InvalidBodyID BodyID = 0xFFFFFFFF

func newBodyID(index uint32, generation uint8) BodyID {
	return BodyID(uint32(generation)<<bodyIndexBits | index&bodyIndexMask)
}

func (id BodyID) Index() uint32 {
	return uint32(id) & bodyIndexMask
}

func (id BodyID) Generation() uint8 {
	return uint8(uint32(id) >> bodyIndexBits & bodyGenerationMask)
}

func (id BodyID) IsValid() bool {
	return id != InvalidBodyID
}

func (id BodyID) String() string {
	if !id.IsValid() {
		return "body(invalid)"
	}
	return fmt.Sprintf("body(%d#%d)", id.Index(), id.Generation())
}

// Layer is the broad category of a body
type Layer uint8

const (
	// LayerNonMoving holds static geometry only
	LayerNonMoving Layer = iota
	LayerMoving
	// LayerSensor bodies report overlaps but never push back
	LayerSensor
)

func (l Layer) String() string {
	switch l {
	case LayerNonMoving:
		return "non-moving"
	case LayerMoving:
		return "moving"
	case LayerSensor:
		return "sensor"
	}
	return "unknown"
}

// UserFlagUsesFiltering is set in Body.UserFlags by owners that want OnContactValidate to look closer
const UserFlagUsesFiltering uint32 = 1 << 0

type BodySettings struct {
	Shape      actor.ShapeInterface
	Position   mgl64.Vec3
	Rotation   mgl64.Quat
	MotionType actor.BodyType
	Layer      Layer
	// Density of dynamic bodies, 1 when zero
	Density float64
	// Material overrides the default zero restitution and friction
	Material      *actor.Material
	AllowSleep    bool
	GravityFactor float64
	UserData      any
}

// DefaultBodySettings returns settings for a sleeping-allowed body with normal gravity
func DefaultBodySettings(shape actor.ShapeInterface, position mgl64.Vec3, rotation mgl64.Quat, motion actor.BodyType, layer Layer) BodySettings {
	return BodySettings{
		Shape:         shape,
		Position:      position,
		Rotation:      rotation,
		MotionType:    motion,
		Layer:         layer,
		Density:       1,
		AllowSleep:    true,
		GravityFactor: 1,
	}
}

// Body is one simulated body. Its mutating methods must not be called while the System steps.
type Body struct {
	id      BodyID
	layer   Layer
	inWorld bool

	rigid *actor.RigidBody

	// UserData is owned by the caller, typically a back pointer to its handle
	UserData any
	// UserFlags is published by the owner and read by contact listeners from worker goroutines
	UserFlags atomic.Uint32
}

func (b *Body) ID() BodyID {
	return b.id
}

func (b *Body) Layer() Layer {
	return b.layer
}

func (b *Body) IsSensor() bool {
	return b.layer == LayerSensor
}

func (b *Body) InWorld() bool {
	return b.inWorld
}

func (b *Body) MotionType() actor.BodyType {
	return b.rigid.BodyType
}

func (b *Body) IsDynamic() bool {
	return b.rigid.BodyType == actor.BodyTypeDynamic
}

// IsActive reports whether the body is simulated this step: dynamic or kinematic, and awake
func (b *Body) IsActive() bool {
	return b.inWorld && b.rigid.BodyType != actor.BodyTypeStatic && !b.rigid.IsSleeping
}

func (b *Body) Shape() actor.ShapeInterface {
	return b.rigid.Shape
}

func (b *Body) AABB() actor.AABB {
	return b.rigid.AABB()
}

// RigidBody exposes the simulated state for the narrowphase and debug drawing
func (b *Body) RigidBody() *actor.RigidBody {
	return b.rigid
}

func (b *Body) Position() mgl64.Vec3 {
	return b.rigid.Transform.Position
}

func (b *Body) Rotation() mgl64.Quat {
	return b.rigid.Transform.Rotation
}

func (b *Body) LinearVelocity() mgl64.Vec3 {
	return b.rigid.Velocity
}

func (b *Body) AngularVelocity() mgl64.Vec3 {
	return b.rigid.AngularVelocity
}

// SetLinearVelocity wakes the body; static bodies ignore it
func (b *Body) SetLinearVelocity(velocity mgl64.Vec3) {
	if b.rigid.BodyType == actor.BodyTypeStatic {
		return
	}
	b.rigid.Awake()
	b.rigid.Velocity = velocity
}

func (b *Body) SetAngularVelocity(velocity mgl64.Vec3) {
	if b.rigid.BodyType == actor.BodyTypeStatic {
		return
	}
	b.rigid.Awake()
	b.rigid.AngularVelocity = velocity
}

func (b *Body) AddImpulse(impulse mgl64.Vec3) {
	b.rigid.ApplyImpulse(impulse)
}

func (b *Body) AddAngularImpulse(impulse mgl64.Vec3) {
	b.rigid.ApplyAngularImpulse(impulse)
}

func (b *Body) AddForce(force mgl64.Vec3) {
	b.rigid.AddForce(force)
}

// SetPositionAndRotation teleports the body
func (b *Body) SetPositionAndRotation(position mgl64.Vec3, rotation mgl64.Quat, activate bool) {
	b.rigid.SetTransform(position, rotation)
	if activate {
		b.rigid.Awake()
	}
}

func (b *Body) SetAllowSleep(allow bool) {
	b.rigid.AllowSleep = allow
	if !allow {
		b.rigid.Awake()
	}
}

func (b *Body) Activate() {
	b.rigid.Awake()
}

func (b *Body) Deactivate() {
	if b.rigid.BodyType == actor.BodyTypeDynamic {
		b.rigid.Sleep()
	}
}

// bodyTable hands out generation checked slots
type bodyTable struct {
	bodies      []*Body
	generations []uint8
	free        []uint32
	limit       int
	count       int
}

func newBodyTable(limit int) bodyTable {
	return bodyTable{
		bodies:      make([]*Body, 0, min(limit, 1024)),
		generations: make([]uint8, 0, min(limit, 1024)),
		limit:       limit,
	}
}

func (t *bodyTable) insert(body *Body) error {
	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.bodies) >= t.limit {
			return ErrBodyTableFull
		}
		index = uint32(len(t.bodies))
		t.bodies = append(t.bodies, nil)
		t.generations = append(t.generations, 0)
	}

	t.bodies[index] = body
	body.id = newBodyID(index, t.generations[index])
	t.count++

	return nil
}

func (t *bodyTable) get(id BodyID) (*Body, error) {
	index := id.Index()
	if !id.IsValid() || int(index) >= len(t.bodies) {
		return nil, fmt.Errorf("%w: %v", ErrBodyNotFound, id)
	}
	body := t.bodies[index]
	if body == nil || t.generations[index] != id.Generation() {
		return nil, fmt.Errorf("%w: %v", ErrBodyNotFound, id)
	}
	return body, nil
}

func (t *bodyTable) remove(id BodyID) {
	index := id.Index()
	t.bodies[index] = nil
	t.generations[index]++
	t.free = append(t.free, index)
	t.count--
}
