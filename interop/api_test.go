package interop

import (
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/akmonengine/quill"
	"github.com/akmonengine/quill/logging"
	"github.com/akmonengine/quill/task"
)

const frame = float32(1.0 / 60.0)

var identity = Quat{W: 1}

type logCapture struct {
	mu       sync.Mutex
	messages []string
}

func (c *logCapture) errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func newTestAPI(t *testing.T) (*API, *logCapture) {
	t.Helper()

	capture := &logCapture{}
	log := logging.New(io.Discard, logging.LevelError)
	log.Redirect(func(level logging.Level, message string) {
		capture.mu.Lock()
		capture.messages = append(capture.messages, message)
		capture.mu.Unlock()
	})

	api := New(task.Config{Threads: 2}, log)
	t.Cleanup(api.Close)
	return api, capture
}

func newTestScene(t *testing.T, api *API, gravity bool) Handle {
	t.Helper()
	config := quill.DefaultConfig()
	if !gravity {
		config.Gravity[1] = 0
	}
	world := api.CreateWorld(config)
	if world == InvalidHandle {
		t.Fatal("world not created")
	}
	return world
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestAPI_InvalidHandlesAreLoggedNoOps(t *testing.T) {
	api, capture := newTestAPI(t)

	var position Vec3
	var rotation Quat
	if api.ReadBodyTransform(42, &position, &rotation) {
		t.Error("read from an unknown body succeeded")
	}
	if api.Process(7, frame) {
		t.Error("stepped an unknown world")
	}
	api.GiveImpulse(3, &Vec3{X: 1})
	api.DestroyConstraint(9)

	if n := len(capture.errors()); n != 4 {
		t.Errorf("logged %d errors, want 4: %v", n, capture.errors())
	}
}

func TestAPI_NilArgumentsAreLoggedNoOps(t *testing.T) {
	api, capture := newTestAPI(t)
	world := newTestScene(t, api, false)
	sphere := api.CreateSphereShape(1)

	tests := []struct {
		name string
		call func() bool
	}{
		{"CreateMovingBody position", func() bool {
			return api.CreateMovingBody(world, sphere, nil, &identity, true) != InvalidHandle
		}},
		{"CreateStaticBody rotation", func() bool {
			return api.CreateStaticBody(world, sphere, &Vec3{}, nil, true) != InvalidHandle
		}},
		{"CreateBoxShape", func() bool { return api.CreateBoxShape(nil) != InvalidHandle }},
		{"CastRay hit", func() bool { return api.CastRay(world, &Vec3{}, &Vec3{X: 1}, nil) }},
		{"ReadBodyVelocity", func() bool { return api.ReadBodyVelocity(1, nil, nil) }},
		{"SetBodyControl", func() bool { return api.SetBodyControl(1, nil, &identity, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(capture.errors())
			if tt.call() {
				t.Error("call succeeded")
			}
			errs := capture.errors()
			if len(errs) != before+1 || !strings.Contains(errs[len(errs)-1], "nil") {
				t.Errorf("errors = %v", errs[before:])
			}
		})
	}
}

func TestAPI_InvalidShapes(t *testing.T) {
	api, _ := newTestAPI(t)

	tests := []struct {
		name   string
		handle Handle
	}{
		{"zero radius", api.CreateSphereShape(0)},
		{"negative extent", api.CreateBoxShape(&Vec3{X: 1, Y: -1, Z: 1})},
		{"zero normal", api.CreatePlaneShape(&Vec3{}, 0)},
	}
	for _, tt := range tests {
		if tt.handle != InvalidHandle {
			t.Errorf("%s: got handle %d", tt.name, tt.handle)
		}
	}
}

func TestAPI_PanickingFilterRejects(t *testing.T) {
	api, capture := newTestAPI(t)
	world := newTestScene(t, api, false)

	box := api.CreateBoxShape(&Vec3{X: 1, Y: 1, Z: 1})
	ball := api.CreateSphereShape(0.5)
	ground := api.CreateStaticBody(world, box, &Vec3{}, &identity, true)
	body := api.CreateMovingBody(world, ball, &Vec3{Y: 1.2}, &identity, true)
	api.EnableCollisionRecording(body, 2, false)

	api.SetCollisionFilter(body, func(self, other Handle) bool {
		panic("host filter failure")
	})
	api.Process(world, frame)

	records := make([]CollisionRecord, 2)
	if n := api.ReadCollisionRecords(body, records); n != 0 {
		t.Errorf("panicking filter let %d contacts through", n)
	}
	found := false
	for _, message := range capture.errors() {
		found = found || strings.Contains(message, "host filter failure")
	}
	if !found {
		t.Error("filter panic not logged")
	}

	var seen [2]Handle
	api.SetCollisionFilter(body, func(self, other Handle) bool {
		seen = [2]Handle{self, other}
		return true
	})
	api.Process(world, frame)
	if seen != [2]Handle{body, ground} {
		t.Errorf("filter saw %v, want [%d %d]", seen, body, ground)
	}
}

// =============================================================================
// Scenario Tests
// =============================================================================

func TestAPI_FallingSphere(t *testing.T) {
	api, capture := newTestAPI(t)
	world := newTestScene(t, api, true)

	box := api.CreateBoxShape(&Vec3{X: 50, Y: 0.5, Z: 50})
	ball := api.CreateSphereShape(0.5)
	ground := api.CreateStaticBody(world, box, &Vec3{Y: -0.5}, &identity, true)
	sphere := api.CreateMovingBody(world, ball, &Vec3{Y: 10}, &identity, true)
	api.EnableCollisionRecording(sphere, 4, true)

	landed := false
	records := make([]CollisionRecord, 4)
	for i_ := 0; i_ < 240; i_++ {
		api.ProcessInBackground(world, frame)
		api.WaitForPhysicsToComplete(world)
		if n := api.ReadCollisionRecords(sphere, records); n > 0 {
			landed = true
			if records[0].Body1 != sphere || records[0].Body2 != ground {
				t.Fatalf("record = %+v", records[0])
			}
		}
	}
	if !landed {
		t.Error("sphere never touched the ground")
	}

	var position Vec3
	var rotation Quat
	if !api.ReadBodyTransform(sphere, &position, &rotation) {
		t.Fatal("cannot read transform")
	}
	if math.Abs(float64(position.Y)-0.5) > 0.01 {
		t.Errorf("sphere rests at %v", position)
	}

	if api.DestroyWorld(world) {
		t.Fatal("destroyed a world with bodies")
	}
	api.DestroyBody(sphere)
	api.DestroyBody(ground)
	if !api.DestroyWorld(world) {
		t.Errorf("DestroyWorld failed: %v", capture.errors())
	}
	if api.ReadBodyTransform(sphere, &position, &rotation) {
		t.Error("destroyed body handle still resolves")
	}
}

func TestAPI_RayHitsCarryUserData(t *testing.T) {
	api, _ := newTestAPI(t)
	world := newTestScene(t, api, false)
	ball := api.CreateSphereShape(0.5)

	var bodies []Handle
	for i := 0; i < 3; i++ {
		body := api.CreateStaticBody(world, ball, &Vec3{Z: float32(2 + 2*i)}, &identity, true)
		api.SetBodyUserData(body, []byte{'b', byte('0' + i)})
		bodies = append(bodies, body)
	}

	var hit RayHit
	if !api.CastRay(world, &Vec3{}, &Vec3{Z: 10}, &hit) {
		t.Fatal("no hit")
	}
	if hit.Body != bodies[0] || string(hit.UserData[:2]) != "b0" {
		t.Errorf("hit = %+v", hit)
	}
	if math.Abs(float64(hit.Distance)-1.5) > 1e-4 || math.Abs(float64(hit.Fraction)-0.15) > 1e-4 {
		t.Errorf("distance %v fraction %v", hit.Distance, hit.Fraction)
	}

	hits := make([]RayHit, 2)
	if n := api.CastRayGetAllUserData(world, &Vec3{}, &Vec3{Z: 10}, hits); n != 2 {
		t.Fatalf("hits = %d, want 2", n)
	}
	if hits[1].Body != bodies[1] || string(hits[1].UserData[:2]) != "b1" {
		t.Errorf("second hit = %+v", hits[1])
	}
}

func TestAPI_Constraints(t *testing.T) {
	api, _ := newTestAPI(t)
	world := newTestScene(t, api, true)
	ball := api.CreateSphereShape(0.5)

	a := api.CreateMovingBody(world, ball, &Vec3{Y: 5}, &identity, true)
	b := api.CreateMovingBody(world, ball, &Vec3{X: 2, Y: 5}, &identity, true)
	pin := api.CreateWorldConstraint(a, &Vec3{Y: 5})
	rope := api.CreateDistanceConstraint(a, b, 0, 2)
	if pin == InvalidHandle || rope == InvalidHandle {
		t.Fatal("constraints not created")
	}

	for i_ := 0; i_ < 60; i_++ {
		api.Process(world, frame)
	}

	var position Vec3
	var rotation Quat
	api.ReadBodyTransform(a, &position, &rotation)
	if math.Abs(float64(position.Y)-5) > 0.1 {
		t.Errorf("pinned body moved to %v", position)
	}

	api.DestroyConstraint(rope)
	api.DestroyBody(a)
	if _, ok := api.constraints.get(pin); ok {
		t.Error("constraint handle outlived its body")
	}
}

func TestAPI_DebugReceiver(t *testing.T) {
	api, _ := newTestAPI(t)
	world := newTestScene(t, api, false)
	box := api.CreateBoxShape(&Vec3{X: 1, Y: 1, Z: 1})
	api.CreateStaticBody(world, box, &Vec3{}, &identity, true)

	var lines []DebugLine
	api.SetDebugReceiver(world, func(l []DebugLine, triangles []DebugTriangle) {
		lines = append(lines, l...)
	})
	api.SetDebugDrawLevel(world, 99)
	api.SetDebugDrawLevel(world, 1)
	api.DrawDebug(world)

	if len(lines) != 12 {
		t.Errorf("lines = %d, want the 12 box edges", len(lines))
	}
}

func TestAPI_DumpSystemState(t *testing.T) {
	api, _ := newTestAPI(t)
	world := newTestScene(t, api, true)

	if !api.DumpSystemState(world, filepath.Join(t.TempDir(), "state.json")) {
		t.Error("dump failed")
	}
	if api.DumpSystemState(world, filepath.Join(t.TempDir(), "missing", "state.json")) {
		t.Error("dump into a missing directory succeeded")
	}
}
