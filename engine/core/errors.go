package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrInitializationFailed = errors.New("initialization failed")
	ErrFrameFailed          = errors.New("frame failed")
	ErrNoSuitableMemoryType = errors.New("no suitable memory type")
	ErrInvalidSyncMask      = errors.New("invalid sync index mask")
	ErrSyncIndexOutOfRange  = errors.New("sync index out of range")
	ErrEmptyMesh            = errors.New("mesh has no vertices")
	ErrInvalidShader        = errors.New("invalid shader bytecode")
	ErrNotInitialized       = errors.New("renderer not initialized")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrAssetNotFound        = errors.New("asset not found")
	ErrUnsupported          = errors.New("not supported")
)

// InitializationFailed marks err so that errors.Is(err, ErrInitializationFailed)
// holds while the original cause stays reachable.
func InitializationFailed(err error, step string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "init: %s", step), ErrInitializationFailed)
}

// FrameFailed is the per-frame counterpart of InitializationFailed.
func FrameFailed(err error, state string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "frame: %s", state), ErrFrameFailed)
}
