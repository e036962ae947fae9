package training

import (
	"context"
	"sync/atomic"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/tensor"
)

const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// NewComputeContext returns the compute context for device. Only the CPU is
// available; asking for an accelerator fails before any data is loaded.
func NewComputeContext(device string) (service.ComputeContext, error) {
	switch device {
	case DeviceCPU, "":
		return &CPUContext{}, nil
	case DeviceCUDA:
		return nil, errs.ResourceUnavailable("compute context", "device %q is not available on this host", device)
	default:
		return nil, errs.Configuration("compute context", "unknown device %q", device)
	}
}

// CPUContext runs everything in host memory.
type CPUContext struct {
	held atomic.Bool
}

var _ service.ComputeContext = (*CPUContext)(nil)

func (c *CPUContext) Device() string { return DeviceCPU }

func (c *CPUContext) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.held.CompareAndSwap(false, true) {
		return errs.ResourceUnavailable("compute context", "cpu context already acquired")
	}
	return nil
}

// ToDevice is the identity on the host.
func (c *CPUContext) ToDevice(t tensor.Tensor) tensor.Tensor { return t }

func (c *CPUContext) Release() error {
	c.held.Store(false)
	return nil
}

// Held reports whether the context is currently acquired.
func (c *CPUContext) Held() bool { return c.held.Load() }
