//go:build !linux

package attach

import (
	"github.com/pkg/errors"
)

func (o *Options) run() error {
	return errors.New("attaching BPF programs is only supported on linux")
}
