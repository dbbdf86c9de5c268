// Package solver is an XPBD rigid-body solver: bodies in a generation-checked table, a hashed
// grid broadphase, analytic and GJK/EPA narrowphase, contact and joint constraints solved in
// collision steps, and ray queries. Parallel phases run on a caller supplied JobSystem.
package solver

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	sleepTimeThreshold     = 0.1
	sleepVelocityThreshold = 0.05
)

type Settings struct {
	MaxBodies             int
	MaxBodyPairs          int
	MaxContactConstraints int
	MaxJoints             int
	Gravity               mgl64.Vec3
	GridCellSize          float64
	GridCells             int
}

func DefaultSettings() Settings {
	return Settings{
		MaxBodies:             10240,
		MaxBodyPairs:          65536,
		MaxContactConstraints: 10240,
		MaxJoints:             4096,
		Gravity:               mgl64.Vec3{0, -9.81, 0},
		GridCellSize:          2,
		GridCells:             4096,
	}
}

// System owns the simulated bodies. Body and joint management must not overlap with Step.
type System struct {
	settings Settings
	gravity  mgl64.Vec3

	table  bodyTable
	active []*Body // bodies in the world, in insertion order
	joints []constraint.Joint

	grid          *SpatialGrid
	listener      ContactListener
	stepListeners []StepListener

	previousPairs map[pairKey]struct{}
	currentPairs  map[pairKey]struct{}
}

func New(settings Settings) *System {
	defaults := DefaultSettings()
	if settings.MaxBodies <= 0 {
		settings.MaxBodies = defaults.MaxBodies
	}
	settings.MaxBodies = min(settings.MaxBodies, MaxBodyIndex)
	if settings.MaxBodyPairs <= 0 {
		settings.MaxBodyPairs = defaults.MaxBodyPairs
	}
	if settings.MaxContactConstraints <= 0 {
		settings.MaxContactConstraints = defaults.MaxContactConstraints
	}
	if settings.MaxJoints <= 0 {
		settings.MaxJoints = defaults.MaxJoints
	}
	if settings.GridCellSize <= 0 {
		settings.GridCellSize = defaults.GridCellSize
	}
	if settings.GridCells <= 0 {
		settings.GridCells = defaults.GridCells
	}

	return &System{
		settings:      settings,
		gravity:       settings.Gravity,
		table:         newBodyTable(settings.MaxBodies),
		grid:          NewSpatialGrid(settings.GridCellSize, settings.GridCells),
		previousPairs: make(map[pairKey]struct{}),
		currentPairs:  make(map[pairKey]struct{}),
	}
}

func (s *System) Settings() Settings {
	return s.settings
}

func (s *System) SetContactListener(listener ContactListener) {
	s.listener = listener
}

func (s *System) AddStepListener(listener StepListener) {
	s.stepListeners = append(s.stepListeners, listener)
}

func (s *System) Gravity() mgl64.Vec3 {
	return s.gravity
}

func (s *System) SetGravity(gravity mgl64.Vec3) {
	s.gravity = gravity
	for _, body := range s.active {
		if body.IsDynamic() {
			body.rigid.Awake()
		}
	}
}

// BodyCount is the number of created and not yet destroyed bodies
func (s *System) BodyCount() int {
	return s.table.count
}

// ActiveBodies returns the bodies currently in the world. The slice must not be modified.
func (s *System) ActiveBodies() []*Body {
	return s.active
}

func validateBodySettings(settings BodySettings) error {
	if settings.Shape == nil {
		return ErrNilShape
	}
	switch settings.Layer {
	case LayerNonMoving:
		if settings.MotionType != actor.BodyTypeStatic {
			return fmt.Errorf("%w: %v on %v", ErrInvalidMotionForLayer, settings.MotionType, settings.Layer)
		}
	case LayerMoving:
		if settings.MotionType == actor.BodyTypeStatic {
			return fmt.Errorf("%w: %v on %v", ErrInvalidMotionForLayer, settings.MotionType, settings.Layer)
		}
	}
	if _, isPlane := settings.Shape.(*actor.Plane); isPlane && settings.MotionType != actor.BodyTypeStatic {
		return fmt.Errorf("%w: planes must be static", ErrInvalidMotionForLayer)
	}
	return nil
}

// CreateBody allocates a body outside the world
func (s *System) CreateBody(settings BodySettings) (BodyID, error) {
	if err := validateBodySettings(settings); err != nil {
		return InvalidBodyID, err
	}

	density := settings.Density
	if density <= 0 {
		density = 1
	}

	rigid := actor.NewRigidBody(actor.NewTransform(settings.Position, settings.Rotation), settings.Shape, settings.MotionType, density)
	rigid.AllowSleep = settings.AllowSleep
	rigid.GravityFactor = settings.GravityFactor
	if settings.Material != nil {
		rigid.Material.Restitution = settings.Material.Restitution
		rigid.Material.StaticFriction = settings.Material.StaticFriction
		rigid.Material.DynamicFriction = settings.Material.DynamicFriction
		rigid.Material.LinearDamping = settings.Material.LinearDamping
		rigid.Material.AngularDamping = settings.Material.AngularDamping
	}

	body := &Body{layer: settings.Layer, rigid: rigid, UserData: settings.UserData}
	if err := s.table.insert(body); err != nil {
		return InvalidBodyID, err
	}

	return body.id, nil
}

// Body resolves an id, failing for destroyed or unknown bodies
func (s *System) Body(id BodyID) (*Body, error) {
	return s.table.get(id)
}

func (s *System) AddBody(id BodyID, activate bool) error {
	body, err := s.table.get(id)
	if err != nil {
		return err
	}
	if body.inWorld {
		return fmt.Errorf("%w: %v", ErrBodyInWorld, id)
	}

	body.inWorld = true
	s.active = append(s.active, body)
	if activate {
		body.rigid.Awake()
	} else if body.IsDynamic() {
		body.rigid.Sleep()
	}

	return nil
}

// RemoveBody takes the body out of the world without destroying it
func (s *System) RemoveBody(id BodyID) error {
	body, err := s.table.get(id)
	if err != nil {
		return err
	}
	if !body.inWorld {
		return fmt.Errorf("%w: %v", ErrBodyNotInWorld, id)
	}

	body.inWorld = false
	if i := slices.Index(s.active, body); i >= 0 {
		s.active = slices.Delete(s.active, i, i+1)
	}

	return nil
}

// DestroyBody frees the slot of a body that is out of the world
func (s *System) DestroyBody(id BodyID) error {
	body, err := s.table.get(id)
	if err != nil {
		return err
	}
	if body.inWorld {
		return fmt.Errorf("%w: %v", ErrBodyInWorld, id)
	}

	s.table.remove(id)
	body.UserData = nil

	return nil
}

func (s *System) AddJoint(joint constraint.Joint) error {
	if len(s.joints) >= s.settings.MaxJoints {
		return fmt.Errorf("solver: %v", TooManyJointConstraints)
	}
	s.joints = append(s.joints, joint)

	a, b := joint.Bodies()
	a.Awake()
	if b != nil {
		b.Awake()
	}
	return nil
}

func (s *System) RemoveJoint(joint constraint.Joint) {
	if i := slices.Index(s.joints, joint); i >= 0 {
		s.joints = slices.Delete(s.joints, i, i+1)
	}
}

func (s *System) JointCount() int {
	return len(s.joints)
}

// OptimizeBroadPhase resizes the grid to the current bodies
func (s *System) OptimizeBroadPhase() {
	cellSize, cells := optimalGrid(s.active)
	s.grid = NewSpatialGrid(cellSize, cells)
}

// Step advances the world by dt in collisionSteps sub-steps
func (s *System) Step(dt float64, collisionSteps int, jobs JobSystem) StepError {
	collisionSteps = max(1, collisionSteps)
	if jobs == nil {
		jobs = InlineJobs{Workers: 1}
	}
	h := dt / float64(collisionSteps)
	stepErr := StepErrorNone

	for step := 0; step < collisionSteps; step++ {
		ctx := StepContext{DeltaTime: h, CollisionStep: step, Fresh: step == 0}
		for _, listener := range s.stepListeners {
			listener.OnStep(ctx)
		}

		s.integrate(h, jobs)

		pairs := s.broadPhase(jobs)
		if len(pairs) > s.settings.MaxBodyPairs {
			pairs = pairs[:s.settings.MaxBodyPairs]
			stepErr |= TooManyBodyPairs
		}

		contacts, err := s.narrowPhase(pairs, jobs)
		stepErr |= err
		s.reportRemovedContacts()

		forEach(jobs, "solve joints", s.joints, func(joint constraint.Joint) {
			joint.SolvePosition(h)
		})
		forEach(jobs, "solve positions", contacts, func(contact *constraint.ContactConstraint) {
			contact.SolvePosition(h)
		})
		s.update(h, jobs)
		forEach(jobs, "solve velocities", contacts, func(contact *constraint.ContactConstraint) {
			contact.SolveVelocity(h)
		})
		for _, joint := range s.joints {
			joint.SolveVelocity(h)
		}

		s.trySleep(h)
	}

	return stepErr
}

func (s *System) integrate(h float64, jobs JobSystem) {
	forEach(jobs, "integrate", s.active, func(body *Body) {
		body.rigid.Integrate(h, s.gravity)
	})
}

func (s *System) broadPhase(jobs JobSystem) []Pair {
	s.grid.Clear()
	for i, body := range s.active {
		s.grid.Insert(i, body)
	}
	s.grid.SortCells()

	return s.grid.FindPairs(s.active, jobs)
}

type narrowResult struct {
	contact constraint.ContactConstraint
	touched bool
}

// narrowPhase validates and collides every pair, then reports them to the listener
func (s *System) narrowPhase(pairs []Pair, jobs JobSystem) ([]*constraint.ContactConstraint, StepError) {
	results := make([]narrowResult, len(pairs))
	var accepted atomic.Int64
	var overflow atomic.Bool
	limit := int64(s.settings.MaxContactConstraints)

	jobs.ParallelFor("narrowphase", len(pairs), func(start, end int) {
		for i := start; i < end; i++ {
			pair := pairs[i]
			if s.listener != nil && s.listener.OnContactValidate(pair.Body1, pair.Body2) == RejectContact {
				continue
			}

			contact, ok := Collide(pair.Body1.rigid, pair.Body2.rigid)
			if !ok {
				continue
			}
			if accepted.Add(1) > limit {
				overflow.Store(true)
				continue
			}

			contact.Compliance = constraint.DefaultCompliance
			results[i] = narrowResult{contact: contact, touched: true}

			if s.listener != nil {
				manifold := newManifold(&results[i].contact)
				if _, persisted := s.previousPairs[makePairKey(pair.Body1.id, pair.Body2.id)]; persisted {
					s.listener.OnContactPersisted(pair.Body1, pair.Body2, &manifold)
				} else {
					s.listener.OnContactAdded(pair.Body1, pair.Body2, &manifold)
				}
			}
		}
	})

	contacts := make([]*constraint.ContactConstraint, 0, len(pairs))
	for i := range results {
		if !results[i].touched {
			continue
		}
		pair := pairs[i]
		s.currentPairs[makePairKey(pair.Body1.id, pair.Body2.id)] = struct{}{}

		if pair.Body1.IsSensor() || pair.Body2.IsSensor() {
			continue
		}
		wakeTouching(pair.Body1, pair.Body2)
		contacts = append(contacts, &results[i].contact)
	}

	if overflow.Load() {
		return contacts, TooManyContactConstraints
	}
	return contacts, StepErrorNone
}

// wakeTouching wakes a sleeping body hit by a moving one
func wakeTouching(a, b *Body) {
	if a.rigid.IsSleeping && b.IsActive() {
		a.rigid.Awake()
	}
	if b.rigid.IsSleeping && a.IsActive() {
		b.rigid.Awake()
	}
}

// reportRemovedContacts compares this collision step with the previous one. Pairs where both
// bodies sleep are kept silently until one of them wakes up.
func (s *System) reportRemovedContacts() {
	for key := range s.previousPairs {
		if _, still := s.currentPairs[key]; still {
			continue
		}

		body1, err1 := s.table.get(key.body1)
		body2, err2 := s.table.get(key.body2)
		if err1 == nil && err2 == nil && body1.inWorld && body2.inWorld && !body1.IsActive() && !body2.IsActive() {
			s.currentPairs[key] = struct{}{}
			continue
		}

		if s.listener != nil {
			s.listener.OnContactRemoved(SubShapeIDPair{Body1: key.body1, Body2: key.body2})
		}
	}

	s.previousPairs, s.currentPairs = s.currentPairs, s.previousPairs
	clear(s.currentPairs)
}

func (s *System) update(h float64, jobs JobSystem) {
	forEach(jobs, "update", s.active, func(body *Body) {
		body.rigid.Update(h)
	})
}

// trySleep runs inline, it is too cheap to be worth a fan-out
func (s *System) trySleep(h float64) {
	for _, body := range s.active {
		body.rigid.TrySleep(h, sleepTimeThreshold, sleepVelocityThreshold)
	}
}
