// Command quill-demo runs a small scene headless: a ground box, a tilted bouncing cube, a
// falling sphere and a pendulum. With -debug-addr the debug lines are streamed to websocket
// viewers and the simulation runs in real time.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/akmonengine/quill"
	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/debugdraw"
	"github.com/akmonengine/quill/logging"
	"github.com/akmonengine/quill/solver"
	"github.com/akmonengine/quill/task"
	"github.com/go-gl/mathgl/mgl64"
)

type scene struct {
	ground, cube, sphere, bob *quill.Body
	pendulum                  *quill.TrackedConstraint
	records                   []quill.CollisionRecord
}

func setupScene(world *quill.World) *scene {
	s := &scene{records: make([]quill.CollisionRecord, 8)}

	s.ground = world.CreateStaticBody(&actor.Box{HalfExtents: mgl64.Vec3{50, 0.5, 50}}, mgl64.Vec3{0, -0.5, 0}, mgl64.QuatIdent(), true)

	settings := solver.DefaultBodySettings(&actor.Box{HalfExtents: mgl64.Vec3{1.5, 1.5, 1.5}}, mgl64.Vec3{-5, 5, -5},
		mgl64.QuatRotate(70, mgl64.Vec3{0, 0, 1}), actor.BodyTypeDynamic, solver.LayerMoving)
	settings.Material = &actor.Material{Restitution: 0.8, StaticFriction: 0.5, DynamicFriction: 0.3}
	s.cube = world.CreateBody(settings, true)

	s.sphere = world.CreateMovingBody(&actor.Sphere{Radius: 0.5}, mgl64.Vec3{0, 10, 0}, mgl64.QuatIdent(), true)
	s.sphere.SetUserData([]byte("sphere"))
	s.sphere.EnableCollisionRecording(s.records, true)

	s.bob = world.CreateMovingBody(&actor.Sphere{Radius: 0.3}, mgl64.Vec3{6, 6, 0}, mgl64.QuatIdent(), true)
	s.pendulum = world.CreateWorldConstraint(s.bob, mgl64.Vec3{4, 8, 0})

	return s
}

func (s *scene) destroy(world *quill.World) {
	world.DestroyConstraint(s.pendulum)
	for _, body := range []*quill.Body{s.bob, s.sphere, s.cube, s.ground} {
		world.DestroyBody(body)
	}
}

func (s *scene) report(log *logging.Logger, world *quill.World, frame int) {
	position, _ := world.ReadBodyTransform(s.sphere)
	cube, _ := world.ReadBodyTransform(s.cube)
	bob, _ := world.ReadBodyTransform(s.bob)
	log.Infof("frame %d: sphere %.3f cube %.3f bob %.3f", frame, position.Y(), cube.Y(), bob.Y())

	for _, record := range s.sphere.RecordedCollisions() {
		if record.JustStarted {
			log.Infof("frame %d: sphere hit a body, depth %.4f", frame, record.PenetrationDepth)
		}
	}
}

func serveDebug(ctx context.Context, addr string, world *quill.World, log *logging.Logger) func() {
	broadcaster := debugdraw.NewBroadcaster(log)
	world.SetDebugSink(broadcaster)
	world.SetDebugDrawLevel(debugdraw.LevelAll)

	mux := http.NewServeMux()
	mux.Handle("/debug", broadcaster)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Infof("debug stream on ws://%s/debug", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("debug server: %v", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		broadcaster.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("debug server shutdown: %v", err)
		}
	}
}

func main() {
	threads := flag.Int("threads", task.DefaultConfig().Threads, "worker threads")
	frames := flag.Int("frames", 600, "frames to simulate")
	background := flag.Bool("background", false, "step on the scheduler and wait for it")
	configPath := flag.String("config", "", "JSON world config")
	debugAddr := flag.String("debug-addr", "", "serve debug lines over websocket on this address")
	logLevel := flag.String("log", "info", "log level")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	log := logging.New(os.Stderr, level)

	config := quill.DefaultConfig()
	if *configPath != "" {
		if config, err = quill.LoadConfig(*configPath); err != nil {
			log.Fatalf("%v", err)
		}
	}

	schedulerConfig := task.DefaultConfig()
	schedulerConfig.Threads = *threads
	scheduler := task.NewScheduler(schedulerConfig, log)
	defer scheduler.Shutdown()

	world, err := quill.NewWorld(config, scheduler, log)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var ticker *time.Ticker
	if *debugAddr != "" {
		closeDebug := serveDebug(ctx, *debugAddr, world, log)
		defer closeDebug()
		ticker = time.NewTicker(time.Duration(config.FrameTime() * float64(time.Second)))
		defer ticker.Stop()
	}

	s := setupScene(world)
	delta := config.FrameTime()
	start := time.Now()

	for frame := 1; frame <= *frames; frame++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				frame = *frames
				continue
			case <-ticker.C:
			}
		}

		if *background {
			world.ProcessInBackground(delta)
			world.WaitForPhysicsToComplete()
		} else {
			world.Process(delta)
		}
		world.DrawDebug()

		if frame%60 == 0 {
			s.report(log, world, frame)
		}
	}

	stats := world.Stats()
	log.Infof("%d steps in %v on %d threads, last step error: %v", stats.Step, time.Since(start), scheduler.GetThreads(), stats.LastStepError)

	s.destroy(world)
	if err := world.Close(); err != nil {
		log.Errorf("%v", err)
	}
}
