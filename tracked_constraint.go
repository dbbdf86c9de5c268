package quill

import (
	"sync/atomic"

	"github.com/akmonengine/quill/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// TrackedConstraint binds one body, or two, through a solver joint. The solver does not track
// joints per body, so this handle is the only record of which bodies a joint touches.
// A nil second body means the first is constrained to the world.
type TrackedConstraint struct {
	world *World
	bodyA *Body
	bodyB *Body
	joint *constraint.PointJoint

	inWorld bool
	removed bool

	refs   atomic.Int32
	onFree func()
}

func newTrackedConstraint(world *World, bodyA, bodyB *Body, joint *constraint.PointJoint) *TrackedConstraint {
	c := &TrackedConstraint{world: world, bodyA: bodyA, bodyB: bodyB, joint: joint}
	c.refs.Store(1)

	bodyA.attachConstraint(c)
	if bodyB != nil {
		bodyB.attachConstraint(c)
	}
	return c
}

func (c *TrackedConstraint) BodyA() *Body {
	return c.bodyA
}

func (c *TrackedConstraint) BodyB() *Body {
	return c.bodyB
}

func (c *TrackedConstraint) InWorld() bool {
	return c.inWorld
}

// WorldAnchors returns the current anchor of each side
func (c *TrackedConstraint) WorldAnchors() (mgl64.Vec3, mgl64.Vec3) {
	return c.joint.WorldAnchors()
}

func (c *TrackedConstraint) AddRef() {
	c.refs.Add(1)
}

func (c *TrackedConstraint) Release() {
	switch refs := c.refs.Add(-1); {
	case refs == 0:
		if c.onFree != nil {
			c.onFree()
		}
	case refs < 0:
		c.world.log.Errorf("quill: constraint released more times than referenced")
	}
}

func (c *TrackedConstraint) RefCount() int {
	return int(c.refs.Load())
}

// SetFreeHook registers fn to run when the last reference is released
func (c *TrackedConstraint) SetFreeHook(fn func()) {
	c.onFree = fn
}

// ready reports whether every body of the constraint is simulated
func (c *TrackedConstraint) ready() bool {
	return c.bodyA.inWorld && (c.bodyB == nil || c.bodyB.inWorld)
}

// attachToWorld hands the joint to the solver once both bodies are in the world
func (c *TrackedConstraint) attachToWorld() {
	if c.inWorld || c.removed || !c.ready() {
		return
	}
	if err := c.world.system.AddJoint(c.joint); err != nil {
		c.world.log.Errorf("quill: cannot add constraint: %v", err)
		return
	}
	c.inWorld = true
}

func (c *TrackedConstraint) detachFromWorld() {
	if !c.inWorld {
		return
	}
	c.world.system.RemoveJoint(c.joint)
	c.inWorld = false
}

// destroyByWorld removes the joint, then detaches from both bodies while holding an extra
// reference so the handle outlives the detach calls
func (c *TrackedConstraint) destroyByWorld() {
	c.detachFromWorld()
	c.removed = true

	c.AddRef()
	c.bodyA.detachConstraint(c)
	if c.bodyB != nil {
		c.bodyB.detachConstraint(c)
	}
	c.Release()
}
