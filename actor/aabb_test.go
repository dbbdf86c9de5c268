package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func unitAABB() AABB {
	return AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}
}

func TestAABB_ContainsPoint(t *testing.T) {
	tests := []struct {
		name  string
		point mgl64.Vec3
		want  bool
	}{
		{"center", mgl64.Vec3{0, 0, 0}, true},
		{"on face", mgl64.Vec3{1, 0, 0}, true},
		{"on corner", mgl64.Vec3{-1, -1, -1}, true},
		{"outside x", mgl64.Vec3{1.01, 0, 0}, false},
		{"outside z", mgl64.Vec3{0, 0, -2}, false},
	}

	box := unitAABB()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.ContainsPoint(tt.point); got != tt.want {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestAABB_Overlaps(t *testing.T) {
	tests := []struct {
		name  string
		other AABB
		want  bool
	}{
		{"same box", unitAABB(), true},
		{"contained", AABB{Min: mgl64.Vec3{-0.5, -0.5, -0.5}, Max: mgl64.Vec3{0.5, 0.5, 0.5}}, true},
		{"partial", AABB{Min: mgl64.Vec3{0.5, 0.5, 0.5}, Max: mgl64.Vec3{2, 2, 2}}, true},
		{"touching faces", AABB{Min: mgl64.Vec3{1, -1, -1}, Max: mgl64.Vec3{3, 1, 1}}, true},
		{"apart on y", AABB{Min: mgl64.Vec3{-1, 1.5, -1}, Max: mgl64.Vec3{1, 3, 1}}, false},
		{"apart on one axis only", AABB{Min: mgl64.Vec3{-1, -1, 2}, Max: mgl64.Vec3{1, 1, 3}}, false},
	}

	box := unitAABB()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.other.Overlaps(box); got != tt.want {
				t.Errorf("reversed Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAABB_CenterAndExtents(t *testing.T) {
	box := AABB{Min: mgl64.Vec3{1, -2, 0}, Max: mgl64.Vec3{3, 2, 5}}
	if got := box.Center(); got != (mgl64.Vec3{2, 0, 2.5}) {
		t.Errorf("Center = %v", got)
	}
	if got := box.Extents(); got != (mgl64.Vec3{2, 4, 5}) {
		t.Errorf("Extents = %v", got)
	}
}

func TestAABB_IntersectsRay(t *testing.T) {
	tests := []struct {
		name      string
		origin    mgl64.Vec3
		direction mgl64.Vec3
		wantHit   bool
		wantT     float64
	}{
		{"straight hit", mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{10, 0, 0}, true, 0.4},
		{"from inside", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{5, 0, 0}, true, 0},
		{"too short", mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{3, 0, 0}, false, 0},
		{"pointing away", mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{-10, 0, 0}, false, 0},
		{"parallel outside slab", mgl64.Vec3{-5, 2, 0}, mgl64.Vec3{10, 0, 0}, false, 0},
		{"diagonal", mgl64.Vec3{-3, -3, 0}, mgl64.Vec3{6, 6, 0}, true, 1.0 / 3.0},
		{"missing corner", mgl64.Vec3{-3, 0, 0}, mgl64.Vec3{4, 4, 0}, false, 0},
	}

	box := unitAABB()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tHit, hit := box.IntersectsRay(tt.origin, tt.direction)
			if hit != tt.wantHit {
				t.Fatalf("hit = %v, want %v", hit, tt.wantHit)
			}
			if hit && math.Abs(tHit-tt.wantT) > 1e-9 {
				t.Errorf("t = %v, want %v", tHit, tt.wantT)
			}
		})
	}
}
