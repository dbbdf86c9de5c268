package quill

import (
	"github.com/akmonengine/quill/solver"
	"github.com/go-gl/mathgl/mgl64"
)

// RayHit is one body hit along start + Fraction*endOffset
type RayHit struct {
	Fraction   float64
	Point      mgl64.Vec3
	Normal     mgl64.Vec3
	Body       *Body
	SubShapeID uint32
	UserData   [UserDataSize]byte
}

func newRayHit(result solver.RayResult) (RayHit, bool) {
	handle := bodyOf(result.Body)
	if handle == nil {
		return RayHit{}, false
	}
	return RayHit{
		Fraction:   result.Fraction,
		Point:      result.Point,
		Normal:     result.Normal,
		Body:       handle,
		SubShapeID: result.SubShapeID,
		UserData:   handle.userData,
	}, true
}

// CastRay returns the nearest body crossed by the segment from start to start+endOffset
func (w *World) CastRay(start, endOffset mgl64.Vec3) (RayHit, bool) {
	result, found := w.system.CastRay(start, endOffset, func(body *solver.Body) bool {
		return bodyOf(body) != nil
	})
	if !found {
		return RayHit{}, false
	}
	return newRayHit(result)
}

// CastRayGetAllUserData writes the hits, nearest first, into buffer and returns how many were
// written. It never writes past len(buffer).
func (w *World) CastRayGetAllUserData(start, endOffset mgl64.Vec3, buffer []RayHit) int {
	if len(buffer) == 0 {
		return 0
	}

	count := 0
	w.system.CastRayAll(start, endOffset, func(result solver.RayResult) bool {
		hit, ok := newRayHit(result)
		if !ok {
			return true
		}
		buffer[count] = hit
		count++
		return count < len(buffer)
	})
	return count
}
