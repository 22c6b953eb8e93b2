package procscan

import (
	"github.com/pkg/errors"
)

var (
	ErrBadScanTTL = errors.New("scan ttl must be positive")
)
