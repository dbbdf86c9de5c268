package quill

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/akmonengine/quill/solver"
	"github.com/go-gl/mathgl/mgl64"
)

var ErrInvalidConfig = errors.New("quill: invalid config")

type Config struct {
	// PhysicsFrameRate is the number of fixed physics steps per simulated second
	PhysicsFrameRate float64 `json:"physics_frame_rate"`
	// CollisionSteps splits each physics step into solver sub-steps
	CollisionSteps int        `json:"collision_steps"`
	Gravity        mgl64.Vec3 `json:"gravity"`

	MaxBodies             int `json:"max_bodies"`
	MaxBodyPairs          int `json:"max_body_pairs"`
	MaxContactConstraints int `json:"max_contact_constraints"`
	MaxJoints             int `json:"max_joints"`

	// BroadPhaseOptimizeInterval is the number of steps between two broadphase rebuilds
	BroadPhaseOptimizeInterval int     `json:"broad_phase_optimize_interval"`
	GridCellSize               float64 `json:"grid_cell_size"`
	GridCells                  int     `json:"grid_cells"`

	// MaxBodyControlImpulse clamps the per step impulse of controlled bodies, 0 disables it
	MaxBodyControlImpulse float64 `json:"max_body_control_impulse"`

	DebugDrawRate        float64 `json:"debug_draw_rate"`
	DebugDrawMaxDistance float64 `json:"debug_draw_max_distance"`
}

func DefaultConfig() Config {
	settings := solver.DefaultSettings()
	return Config{
		PhysicsFrameRate:           60,
		CollisionSteps:             1,
		Gravity:                    settings.Gravity,
		MaxBodies:                  settings.MaxBodies,
		MaxBodyPairs:               settings.MaxBodyPairs,
		MaxContactConstraints:      settings.MaxContactConstraints,
		MaxJoints:                  settings.MaxJoints,
		BroadPhaseOptimizeInterval: 120,
		GridCellSize:               settings.GridCellSize,
		GridCells:                  settings.GridCells,
		MaxBodyControlImpulse:      100,
		DebugDrawRate:              30,
		DebugDrawMaxDistance:       200,
	}
}

// LoadConfig reads a JSON file over the defaults. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("quill: reading config: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("quill: parsing %s: %w", path, err)
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.PhysicsFrameRate <= 0:
		return fmt.Errorf("%w: physics frame rate %v", ErrInvalidConfig, c.PhysicsFrameRate)
	case c.CollisionSteps < 1:
		return fmt.Errorf("%w: collision steps %d", ErrInvalidConfig, c.CollisionSteps)
	case c.MaxBodies < 1 || c.MaxBodies > solver.MaxBodyIndex:
		return fmt.Errorf("%w: max bodies %d", ErrInvalidConfig, c.MaxBodies)
	case c.MaxBodyPairs < 1 || c.MaxContactConstraints < 1 || c.MaxJoints < 1:
		return fmt.Errorf("%w: solver limits must be positive", ErrInvalidConfig)
	case c.BroadPhaseOptimizeInterval < 1:
		return fmt.Errorf("%w: broadphase optimize interval %d", ErrInvalidConfig, c.BroadPhaseOptimizeInterval)
	case c.GridCellSize <= 0 || c.GridCells < 1:
		return fmt.Errorf("%w: grid %v x %d", ErrInvalidConfig, c.GridCellSize, c.GridCells)
	case c.MaxBodyControlImpulse < 0:
		return fmt.Errorf("%w: max body control impulse %v", ErrInvalidConfig, c.MaxBodyControlImpulse)
	}
	return nil
}

// FrameTime is the duration of one physics step in seconds
func (c Config) FrameTime() float64 {
	return 1 / c.PhysicsFrameRate
}

func (c Config) solverSettings() solver.Settings {
	return solver.Settings{
		MaxBodies:             c.MaxBodies,
		MaxBodyPairs:          c.MaxBodyPairs,
		MaxContactConstraints: c.MaxContactConstraints,
		MaxJoints:             c.MaxJoints,
		Gravity:               c.Gravity,
		GridCellSize:          c.GridCellSize,
		GridCells:             c.GridCells,
	}
}
