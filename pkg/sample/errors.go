package sample

import (
	"github.com/pkg/errors"
)

var (
	ErrBadCapacity  = errors.New("table capacity must be positive")
	ErrNoStackTable = errors.New("no stack table specified")
	ErrNoCountTable = errors.New("no count table specified")
)
