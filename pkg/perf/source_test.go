package perf_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/xprof/pkg/perf"
	"github.com/maxgio92/xprof/pkg/sample"
)

type fakeReader struct {
	reads atomic.Uint64
	err   error
}

func (r *fakeReader) Read(cpu int) ([]*sample.Context, error) {
	r.reads.Add(1)
	if r.err != nil {
		return nil, r.err
	}

	return []*sample.Context{
		sample.NewContext(
			sample.WithContextPID(uint32(cpu + 1)),
			sample.WithContextTID(uint32(cpu + 1)),
		),
	}, nil
}

type countingHandler struct {
	samples atomic.Uint64
}

func (h *countingHandler) Sample(*sample.Context) {
	h.samples.Add(1)
}

func TestNewSource_Validation(t *testing.T) {
	reader := &fakeReader{}
	handler := &countingHandler{}

	_, err := perf.NewSource(perf.WithHandler(handler))
	require.ErrorIs(t, err, perf.ErrNoReader)

	_, err = perf.NewSource(perf.WithReader(reader))
	require.ErrorIs(t, err, perf.ErrNoHandler)

	_, err = perf.NewSource(
		perf.WithReader(reader),
		perf.WithHandler(handler),
		perf.WithCPUs(0),
	)
	require.ErrorIs(t, err, perf.ErrBadCPUs)

	_, err = perf.NewSource(
		perf.WithReader(reader),
		perf.WithHandler(handler),
		perf.WithFrequency(uint64(time.Second)+1),
	)
	require.ErrorIs(t, err, perf.ErrBadFrequency)
}

func TestSource_Run(t *testing.T) {
	reader := &fakeReader{}
	handler := &countingHandler{}

	source, err := perf.NewSource(
		perf.WithReader(reader),
		perf.WithHandler(handler),
		perf.WithFrequency(500),
		perf.WithCPUs(2),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, source.Run(ctx))
	require.Positive(t, reader.reads.Load())
	require.Positive(t, handler.samples.Load())
}

func TestSource_RunSkipsFailedReads(t *testing.T) {
	reader := &fakeReader{err: errors.New("cpu went away")}
	handler := &countingHandler{}

	source, err := perf.NewSource(
		perf.WithReader(reader),
		perf.WithHandler(handler),
		perf.WithFrequency(500),
		perf.WithCPUs(1),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, source.Run(ctx))
	require.Positive(t, reader.reads.Load())
	require.Zero(t, handler.samples.Load())
}
