//go:build arm64

package sample_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/xprof/pkg/sample"
)

func TestRegisters_Param6(t *testing.T) {
	var regs sample.Registers
	regs.Regs[5] = 0xcafe
	require.Equal(t, uint64(0xcafe), regs.Param6())
}
