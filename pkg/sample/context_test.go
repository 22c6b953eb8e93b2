package sample_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/xprof/pkg/sample"
)

func TestNewContext(t *testing.T) {
	ctx := sample.NewContext(
		sample.WithContextPID(100),
		sample.WithContextTID(101),
	)

	require.Equal(t, uint32(100), ctx.PID())
	require.Equal(t, uint32(101), ctx.TID())
}

func TestContext_Defaults(t *testing.T) {
	ctx := sample.NewContext()

	require.Zero(t, ctx.PID())
	require.Zero(t, ctx.TID())
	require.Zero(t, ctx.Regs().Param6())
}
