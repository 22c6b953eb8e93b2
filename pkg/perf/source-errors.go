package perf

import (
	"github.com/pkg/errors"
)

var (
	ErrNoReader     = errors.New("no context reader specified")
	ErrNoHandler    = errors.New("no sample handler specified")
	ErrBadFrequency = errors.New("sampling frequency out of range")
	ErrBadCPUs      = errors.New("cpu count must be positive")
)
