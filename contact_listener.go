package quill

import (
	"sync"
	"sync/atomic"

	"github.com/akmonengine/quill/constraint"
	"github.com/akmonengine/quill/logging"
	"github.com/akmonengine/quill/solver"
	"github.com/go-gl/mathgl/mgl64"
)

type contactKey struct {
	body1, body2 solver.BodyID
}

func makeContactKey(a, b solver.BodyID) contactKey {
	if b < a {
		a, b = b, a
	}
	return contactKey{body1: a, body2: b}
}

// activeContact is kept for debug drawing only
type activeContact struct {
	Normal mgl64.Vec3
	Points []constraint.ContactPoint
}

// ContactListener applies collision filtering and writes collision records for the bodies
// that asked for them. It is installed on the solver by NewWorld.
type ContactListener struct {
	log  *logging.Logger
	step atomic.Uint32

	// touched holds the recording bodies written since the last fresh step
	touchedMu sync.Mutex
	touched   []*Body

	trackActive atomic.Bool
	activeMu    sync.Mutex
	active      map[contactKey]activeContact
}

func newContactListener(log *logging.Logger) *ContactListener {
	return &ContactListener{
		log:    log,
		active: make(map[contactKey]activeContact),
	}
}

func (l *ContactListener) OnContactValidate(body1, body2 *solver.Body) solver.ValidateResult {
	if (body1.UserFlags.Load()|body2.UserFlags.Load())&flagUsesFiltering == 0 {
		return solver.AcceptContact
	}

	handle1, handle2 := bodyOf(body1), bodyOf(body2)
	if handle1 == nil || handle2 == nil {
		return solver.AcceptContact
	}
	if !handle1.accepts(handle2) || !handle2.accepts(handle1) {
		return solver.RejectContact
	}
	return solver.AcceptContact
}

func (l *ContactListener) OnContactAdded(body1, body2 *solver.Body, manifold *solver.ContactManifold) {
	l.onContact(body1, body2, manifold, true)
}

func (l *ContactListener) OnContactPersisted(body1, body2 *solver.Body, manifold *solver.ContactManifold) {
	l.onContact(body1, body2, manifold, false)
}

func (l *ContactListener) OnContactRemoved(pair solver.SubShapeIDPair) {
	if !l.trackActive.Load() {
		return
	}
	l.activeMu.Lock()
	delete(l.active, makeContactKey(pair.Body1, pair.Body2))
	l.activeMu.Unlock()
}

func (l *ContactListener) onContact(body1, body2 *solver.Body, manifold *solver.ContactManifold, started bool) {
	if l.trackActive.Load() {
		l.activeMu.Lock()
		l.active[makeContactKey(body1.ID(), body2.ID())] = activeContact{Normal: manifold.Normal, Points: manifold.Points}
		l.activeMu.Unlock()
	}

	if (body1.UserFlags.Load()|body2.UserFlags.Load())&flagRecording == 0 {
		return
	}
	handle1, handle2 := bodyOf(body1), bodyOf(body2)
	if handle1 == nil || handle2 == nil {
		return
	}

	l.record(handle1, handle2, manifold.SubShapeID1, manifold.SubShapeID2, manifold.PenetrationDepth, started)
	l.record(handle2, handle1, manifold.SubShapeID2, manifold.SubShapeID1, manifold.PenetrationDepth, started)
}

// record writes into self's recording, with self's sub shape first
func (l *ContactListener) record(self, other *Body, subShapeSelf, subShapeOther uint32, depth float64, started bool) {
	rec := self.recording.Load()
	if rec == nil {
		return
	}

	step := l.step.Load()
	if previous := rec.step.Load(); previous != step && rec.step.CompareAndSwap(previous, step) {
		l.touchedMu.Lock()
		l.touched = append(l.touched, self)
		l.touchedMu.Unlock()
	}

	rec.add(other, subShapeSelf, subShapeOther, depth, started)
}

// beginStep is called on every fresh step: the records of the previous update are cleared
// before anything new is written
func (l *ContactListener) beginStep(step uint32) {
	l.touchedMu.Lock()
	touched := l.touched
	l.touched = nil
	l.touchedMu.Unlock()

	for _, body := range touched {
		if rec := body.recording.Load(); rec != nil {
			rec.clear()
		}
	}
	l.step.Store(step)
}

// publish copies the records of this update into the bodies' buffers
func (l *ContactListener) publish() {
	step := l.step.Load()

	l.touchedMu.Lock()
	defer l.touchedMu.Unlock()
	for _, body := range l.touched {
		if rec := body.recording.Load(); rec != nil {
			rec.publish(body, step)
		}
	}
}

// forget drops a body that is leaving the world. Its records go with it: once out of the
// touched list, no fresh step would clear them again.
func (l *ContactListener) forget(body *Body) {
	l.touchedMu.Lock()
	for i, touched := range l.touched {
		if touched == body {
			l.touched = append(l.touched[:i], l.touched[i+1:]...)
			break
		}
	}
	l.touchedMu.Unlock()

	if rec := body.recording.Load(); rec != nil {
		rec.clear()
		rec.step.Store(0)
	}

	if l.trackActive.Load() {
		l.activeMu.Lock()
		for key := range l.active {
			if key.body1 == body.id || key.body2 == body.id {
				delete(l.active, key)
			}
		}
		l.activeMu.Unlock()
	}
}

func (l *ContactListener) setTrackActive(track bool) {
	l.trackActive.Store(track)
	if !track {
		l.activeMu.Lock()
		clear(l.active)
		l.activeMu.Unlock()
	}
}

// activeContacts copies the contact map for drawing
func (l *ContactListener) activeContacts() []activeContact {
	l.activeMu.Lock()
	defer l.activeMu.Unlock()
	contacts := make([]activeContact, 0, len(l.active))
	for _, contact := range l.active {
		contacts = append(contacts, contact)
	}
	return contacts
}
