//go:build linux

package loader

import (
	"github.com/pkg/errors"
)

var (
	ErrNoObjectPath = errors.New("no BPF object path specified")
	ErrProgNotFound = errors.New("sampling program not found in BPF object")
	ErrMapNotFound  = errors.New("sampling maps not found in BPF object")
	ErrNotLoaded    = errors.New("BPF object is not loaded")
)
