package solver

import (
	"errors"
	"strings"
)

var (
	ErrBodyNotFound          = errors.New("solver: body not found")
	ErrBodyTableFull         = errors.New("solver: body table is full")
	ErrInvalidMotionForLayer = errors.New("solver: motion type not allowed on layer")
	ErrNilShape              = errors.New("solver: body has no shape")
	ErrBodyInWorld           = errors.New("solver: body is still in the world")
	ErrBodyNotInWorld        = errors.New("solver: body is not in the world")
)

// StepError reports the resources a step ran out of. The step still completes with
// whatever fitted.
type StepError uint8

const (
	StepErrorNone             StepError = 0
	TooManyBodyPairs          StepError = 1 << 0
	TooManyContactConstraints StepError = 1 << 1
	TooManyJointConstraints   StepError = 1 << 2
)

func (e StepError) String() string {
	if e == StepErrorNone {
		return "none"
	}

	var causes []string
	if e&TooManyBodyPairs != 0 {
		causes = append(causes, "too many body pairs")
	}
	if e&TooManyContactConstraints != 0 {
		causes = append(causes, "too many contact constraints")
	}
	if e&TooManyJointConstraints != 0 {
		causes = append(causes, "too many joint constraints")
	}
	return strings.Join(causes, ", ")
}

func (e StepError) Has(cause StepError) bool {
	return e&cause != 0
}
