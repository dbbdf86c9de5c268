package solver

import (
	"github.com/akmonengine/quill/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

type ValidateResult uint8

const (
	AcceptContact ValidateResult = iota
	RejectContact
)

// ContactManifold describes how one pair touches during one collision step
type ContactManifold struct {
	// Normal points from the first body toward the second
	Normal mgl64.Vec3
	Points []constraint.ContactPoint
	// PenetrationDepth is the deepest point of the manifold, never negative
	PenetrationDepth float64
	SubShapeID1      uint32
	SubShapeID2      uint32
}

// WholeShape is the sub-shape id of every contact and ray hit. Sphere, box and plane shapes
// have no parts, so the ids only become meaningful once compound shapes exist.
const WholeShape uint32 = 0

// SubShapeIDPair identifies a contact that ended
type SubShapeIDPair struct {
	Body1, Body2             BodyID
	SubShapeID1, SubShapeID2 uint32
}

// ContactListener is told about contacts as the System finds them.
//
// OnContactValidate, OnContactAdded and OnContactPersisted run on job system workers, with no
// ordering between pairs; for one pair Validate always comes first and a pair is never handled
// by two workers at once. OnContactRemoved runs on the goroutine calling Step.
type ContactListener interface {
	OnContactValidate(body1, body2 *Body) ValidateResult
	OnContactAdded(body1, body2 *Body, manifold *ContactManifold)
	OnContactPersisted(body1, body2 *Body, manifold *ContactManifold)
	OnContactRemoved(pair SubShapeIDPair)
}

// StepContext is handed to step listeners before each collision step
type StepContext struct {
	DeltaTime     float64
	CollisionStep int
	// Fresh is true for the first collision step of a Step call
	Fresh bool
}

type StepListener interface {
	OnStep(ctx StepContext)
}

// StepListenerFunc adapts a function to StepListener
type StepListenerFunc func(ctx StepContext)

func (f StepListenerFunc) OnStep(ctx StepContext) {
	f(ctx)
}

type pairKey struct {
	body1, body2 BodyID
}

// makePairKey orders the ids so (a, b) and (b, a) share a key
func makePairKey(a, b BodyID) pairKey {
	if b.Index() < a.Index() {
		a, b = b, a
	}
	return pairKey{body1: a, body2: b}
}

func newManifold(contact *constraint.ContactConstraint) ContactManifold {
	return ContactManifold{
		Normal:           contact.Normal,
		Points:           contact.Points,
		PenetrationDepth: contact.MaxPenetration(),
		SubShapeID1:      WholeShape,
		SubShapeID2:      WholeShape,
	}
}
