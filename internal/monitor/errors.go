package monitor

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered is returned for operations on an unknown service name
	ErrNotRegistered = errors.New("service not registered")

	// ErrUnhealthy is returned by checks that report an unhealthy result without a cause
	ErrUnhealthy = errors.New("check reported unhealthy")
)

// CheckExecutionError wraps a failure raised inside a stage check
type CheckExecutionError struct {
	Service string
	Stage   HealthStage
	Err     error
}

func (e *CheckExecutionError) Error() string {
	return fmt.Sprintf("%s check for %s failed: %v", e.Stage, e.Service, e.Err)
}

func (e *CheckExecutionError) Unwrap() error {
	return e.Err
}

func notRegistered(name string) error {
	return fmt.Errorf("%w: %s", ErrNotRegistered, name)
}
