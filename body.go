package quill

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/akmonengine/quill/solver"
)

// UserDataSize is the fixed size of the opaque user data copied into ray hits and records
const UserDataSize = 16

// Status bits pushed to solver.Body.UserFlags, read by the contact listener on workers
const (
	flagUsesFiltering = solver.UserFlagUsesFiltering
	flagRecording     = 1 << 1
)

// CollisionFilter decides, from self's point of view, whether self may collide with other
type CollisionFilter func(self, other *Body) bool

// Body is a reference counted handle to one simulated body. The world holds one reference
// from creation until DestroyBody; every TrackedConstraint touching the body holds another.
// Lifecycle changes happen on the goroutine owning the World.
type Body struct {
	id     solver.BodyID
	world  *World
	refs   atomic.Int32
	onFree func()

	inWorld   bool
	active    bool
	destroyed bool

	constraints []*TrackedConstraint
	// control is guarded by the world's control lock
	control *ControlState

	// filterMu guards what OnContactValidate reads from worker goroutines
	filterMu          sync.RWMutex
	ignored           map[solver.BodyID]struct{}
	collisionDisabled bool
	filter            CollisionFilter

	recording atomic.Pointer[recording]

	userData [UserDataSize]byte
}

func newBody(world *World, id solver.BodyID) *Body {
	b := &Body{id: id, world: world}
	b.refs.Store(1)
	return b
}

func (b *Body) ID() solver.BodyID {
	return b.id
}

// World is the world that created b
func (b *Body) World() *World {
	return b.world
}

func (b *Body) InWorld() bool {
	return b.inWorld
}

// IsDestroyed reports whether DestroyBody already released the simulated body
func (b *Body) IsDestroyed() bool {
	return b.destroyed
}

// AddRef takes one more owning reference
func (b *Body) AddRef() {
	b.refs.Add(1)
}

// Release drops one reference; the last one frees the handle
func (b *Body) Release() {
	switch refs := b.refs.Add(-1); {
	case refs == 0:
		b.free()
	case refs < 0:
		if b.world != nil {
			b.world.log.Errorf("quill: body %v released more times than referenced", b.id)
		}
	}
}

func (b *Body) RefCount() int {
	return int(b.refs.Load())
}

// SetFreeHook registers fn to run when the last reference is released
func (b *Body) SetFreeHook(fn func()) {
	b.onFree = fn
}

func (b *Body) free() {
	if len(b.constraints) > 0 && b.world != nil {
		b.world.log.Errorf("quill: body %v freed while %d constraints still reference it", b.id, len(b.constraints))
	}
	b.recording.Store(nil)
	if b.onFree != nil {
		b.onFree()
	}
}

// Constraints returns the constraints attached to this body. The slice must not be modified.
func (b *Body) Constraints() []*TrackedConstraint {
	return b.constraints
}

func (b *Body) attachConstraint(c *TrackedConstraint) {
	b.AddRef()
	b.constraints = append(b.constraints, c)
}

func (b *Body) detachConstraint(c *TrackedConstraint) {
	i := slices.Index(b.constraints, c)
	if i < 0 {
		if b.world != nil {
			b.world.log.Errorf("quill: constraint not attached to body %v", b.id)
		}
		return
	}
	b.constraints = slices.Delete(b.constraints, i, i+1)
	b.Release()
}

// EnableBodyControlIfNotAlready reports whether control was off and is now on
func (b *Body) EnableBodyControlIfNotAlready() bool {
	if b.control != nil {
		return false
	}
	b.control = &ControlState{}
	return true
}

// DisableBodyControl reports whether control was on and is now off
func (b *Body) DisableBodyControl() bool {
	if b.control == nil {
		return false
	}
	b.control = nil
	return true
}

// SetUserData copies up to UserDataSize bytes, the rest is zeroed
func (b *Body) SetUserData(data []byte) {
	clear(b.userData[:])
	copy(b.userData[:], data)
}

func (b *Body) UserData() [UserDataSize]byte {
	return b.userData
}

// AddCollisionIgnore stops collisions between b and other. Unless skipOther is set, other
// ignores b too.
func (b *Body) AddCollisionIgnore(other *Body, skipOther bool) {
	b.filterMu.Lock()
	if b.ignored == nil {
		b.ignored = make(map[solver.BodyID]struct{})
	}
	b.ignored[other.id] = struct{}{}
	b.filterMu.Unlock()
	b.updateFlags()

	if !skipOther {
		other.AddCollisionIgnore(b, true)
	}
}

func (b *Body) RemoveCollisionIgnore(other *Body, skipOther bool) {
	b.filterMu.Lock()
	delete(b.ignored, other.id)
	b.filterMu.Unlock()
	b.updateFlags()

	if !skipOther {
		other.RemoveCollisionIgnore(b, true)
	}
}

// ClearCollisionIgnores forgets every body b ignored. Bodies ignoring b keep doing so.
func (b *Body) ClearCollisionIgnores() {
	b.filterMu.Lock()
	clear(b.ignored)
	b.filterMu.Unlock()
	b.updateFlags()
}

func (b *Body) IsIgnoring(other *Body) bool {
	b.filterMu.RLock()
	defer b.filterMu.RUnlock()
	_, ok := b.ignored[other.id]
	return ok
}

// SetCollisionDisabledState turns every collision of b off, or back on
func (b *Body) SetCollisionDisabledState(disableAll bool) {
	b.filterMu.Lock()
	b.collisionDisabled = disableAll
	b.filterMu.Unlock()
	b.updateFlags()
}

func (b *Body) SetCollisionFilter(filter CollisionFilter) {
	b.filterMu.Lock()
	b.filter = filter
	b.filterMu.Unlock()
	b.updateFlags()
}

func (b *Body) RemoveCollisionFilter() {
	b.SetCollisionFilter(nil)
}

// EnableCollisionRecording makes the contact listener write the collisions of each physics
// update into buffer, at most len(buffer) of them. In persist mode repeated contacts with the
// same body share one record.
func (b *Body) EnableCollisionRecording(buffer []CollisionRecord, persist bool) {
	if len(buffer) == 0 {
		b.DisableCollisionRecording()
		return
	}
	b.recording.Store(newRecording(buffer, persist))
	b.updateFlags()
}

func (b *Body) DisableCollisionRecording() {
	b.recording.Store(nil)
	b.updateFlags()
}

// RecordedCollisions returns the records written during the last physics update
func (b *Body) RecordedCollisions() []CollisionRecord {
	rec := b.recording.Load()
	if rec == nil {
		return nil
	}
	return rec.published()
}

// accepts is the validate decision of b about other
func (b *Body) accepts(other *Body) bool {
	b.filterMu.RLock()
	defer b.filterMu.RUnlock()

	if b.collisionDisabled {
		return false
	}
	if _, ignored := b.ignored[other.id]; ignored {
		return false
	}
	if b.filter != nil && !b.filter(b, other) {
		return false
	}
	return true
}

// updateFlags recomputes the packed status and pushes it to the solver body
func (b *Body) updateFlags() {
	var flags uint32

	b.filterMu.RLock()
	if b.collisionDisabled || len(b.ignored) > 0 || b.filter != nil {
		flags |= flagUsesFiltering
	}
	b.filterMu.RUnlock()
	if b.recording.Load() != nil {
		flags |= flagRecording
	}

	if b.world == nil || b.destroyed {
		return
	}
	if body, err := b.world.system.Body(b.id); err == nil {
		body.UserFlags.Store(flags)
	}
}

// bodyOf recovers the handle stored in a solver body
func bodyOf(body *solver.Body) *Body {
	handle, _ := body.UserData.(*Body)
	return handle
}
