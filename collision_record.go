package quill

import (
	"math"
	"sync"
	"sync/atomic"
)

// CollisionRecord is one collision seen by a recording body, from that body's side: Body1 is
// always the recording body.
type CollisionRecord struct {
	Body1, Body2             *Body
	UserData1, UserData2     [UserDataSize]byte
	SubShapeID1, SubShapeID2 uint32
	// PenetrationDepth is never negative; merged records keep the deepest value
	PenetrationDepth float64
	// JustStarted is set when the contact began during the physics update
	JustStarted bool
	// Step is the physics step that wrote the record
	Step uint32
}

// recordSlot is written from worker goroutines. other is published last so a persist lookup
// never matches a half written slot.
type recordSlot struct {
	other       atomic.Pointer[Body]
	subShape1   atomic.Uint32
	subShape2   atomic.Uint32
	penetration atomic.Uint64
	justStarted atomic.Bool
}

func (s *recordSlot) reset() {
	s.other.Store(nil)
	s.penetration.Store(0)
	s.justStarted.Store(false)
}

// mergePenetration keeps the maximum of the stored and given depths
func (s *recordSlot) mergePenetration(depth float64) {
	for {
		old := s.penetration.Load()
		if math.Float64frombits(old) >= depth {
			return
		}
		if s.penetration.CompareAndSwap(old, math.Float64bits(depth)) {
			return
		}
	}
}

type recording struct {
	persist bool
	slots   []recordSlot
	// next counts allocations, it may run past len(slots)
	next    atomic.Int32
	dropped atomic.Int32
	step    atomic.Uint32

	// buffer belongs to the caller; count is how much of it the last publish filled
	mu     sync.Mutex
	buffer []CollisionRecord
	count  int
}

func newRecording(buffer []CollisionRecord, persist bool) *recording {
	return &recording{
		persist: persist,
		slots:   make([]recordSlot, len(buffer)),
		buffer:  buffer,
	}
}

func (r *recording) capacity() int {
	return len(r.slots)
}

// written is the number of slots holding a record
func (r *recording) written() int {
	return min(int(r.next.Load()), len(r.slots))
}

// find returns the slot already holding a contact with other, if any
func (r *recording) find(other *Body) *recordSlot {
	for i, n_ := 0, r.written(); i < n_; i++ {
		if r.slots[i].other.Load() == other {
			return &r.slots[i]
		}
	}
	return nil
}

func (r *recording) allocate() *recordSlot {
	index := int(r.next.Add(1)) - 1
	if index >= len(r.slots) {
		r.dropped.Add(1)
		return nil
	}
	return &r.slots[index]
}

// add records one contact with other. Calls for the same pair never overlap, calls for
// different pairs only share the allocator.
func (r *recording) add(other *Body, subShape1, subShape2 uint32, depth float64, started bool) {
	depth = max(0, depth)

	if r.persist {
		if slot := r.find(other); slot != nil {
			slot.mergePenetration(depth)
			if started {
				slot.justStarted.Store(true)
			}
			return
		}
	}

	slot := r.allocate()
	if slot == nil {
		return
	}
	slot.subShape1.Store(subShape1)
	slot.subShape2.Store(subShape2)
	slot.penetration.Store(math.Float64bits(depth))
	slot.justStarted.Store(started)
	slot.other.Store(other)
}

// clear forgets the records of the previous physics update
func (r *recording) clear() {
	for i, n_ := 0, r.written(); i < n_; i++ {
		r.slots[i].reset()
	}
	r.next.Store(0)
	r.dropped.Store(0)

	r.mu.Lock()
	r.count = 0
	r.mu.Unlock()
}

// publish copies the slots into the caller's buffer, never past its length
func (r *recording) publish(self *Body, step uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(r.written(), len(r.buffer))
	for i := 0; i < n; i++ {
		slot := &r.slots[i]
		other := slot.other.Load()
		record := CollisionRecord{
			Body1:            self,
			Body2:            other,
			UserData1:        self.userData,
			SubShapeID1:      slot.subShape1.Load(),
			SubShapeID2:      slot.subShape2.Load(),
			PenetrationDepth: math.Float64frombits(slot.penetration.Load()),
			JustStarted:      slot.justStarted.Load(),
			Step:             step,
		}
		if other != nil {
			record.UserData2 = other.userData
		}
		r.buffer[i] = record
	}
	r.count = n
}

func (r *recording) published() []CollisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffer[:r.count]
}
