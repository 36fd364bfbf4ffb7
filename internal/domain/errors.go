package domain

import "errors"

var (
	ErrProcessSpawn     = errors.New("runtime process failed to spawn")
	ErrReadinessTimeout = errors.New("runtime process did not become ready")
	ErrRequestTimeout   = errors.New("request timed out")
	ErrChannelDisposed  = errors.New("message channel disposed")
	ErrTransport        = errors.New("device transport failure")
	ErrRuntimeNotReady  = errors.New("runtime not initialized")
	ErrBoardNotFound    = errors.New("board profile not found")
	ErrDeviceNotTracked = errors.New("device not tracked")
)
