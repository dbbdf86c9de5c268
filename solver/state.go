package solver

import (
	"encoding/json"
	"io"

	"github.com/go-gl/mathgl/mgl64"
)

type bodyState struct {
	ID              uint32     `json:"id"`
	Generation      uint8      `json:"generation"`
	Layer           string     `json:"layer"`
	Motion          string     `json:"motion"`
	Shape           string     `json:"shape"`
	Position        mgl64.Vec3 `json:"position"`
	Rotation        [4]float64 `json:"rotation"`
	LinearVelocity  mgl64.Vec3 `json:"linear_velocity"`
	AngularVelocity mgl64.Vec3 `json:"angular_velocity"`
	Sleeping        bool       `json:"sleeping"`
}

type systemState struct {
	Gravity   mgl64.Vec3  `json:"gravity"`
	BodyCount int         `json:"body_count"`
	Joints    int         `json:"joints"`
	GridCell  float64     `json:"grid_cell_size"`
	Bodies    []bodyState `json:"bodies"`
}

// SaveState writes a JSON snapshot of the bodies in the world
func (s *System) SaveState(w io.Writer) error {
	state := systemState{
		Gravity:   s.gravity,
		BodyCount: s.table.count,
		Joints:    len(s.joints),
		GridCell:  s.grid.CellSize(),
		Bodies:    make([]bodyState, 0, len(s.active)),
	}

	for _, body := range s.active {
		rotation := body.Rotation()
		state.Bodies = append(state.Bodies, bodyState{
			ID:              body.id.Index(),
			Generation:      body.id.Generation(),
			Layer:           body.layer.String(),
			Motion:          body.MotionType().String(),
			Shape:           body.Shape().Type().String(),
			Position:        body.Position(),
			Rotation:        [4]float64{rotation.W, rotation.V.X(), rotation.V.Y(), rotation.V.Z()},
			LinearVelocity:  body.LinearVelocity(),
			AngularVelocity: body.AngularVelocity(),
			Sleeping:        body.rigid.IsSleeping,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(state)
}
