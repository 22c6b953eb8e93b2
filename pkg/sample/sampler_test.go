package sample_test

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/xprof/pkg/metrics"
	"github.com/maxgio92/xprof/pkg/sample"
)

func newTestSampler(t *testing.T, stackCap, countCap int) *sample.Sampler {
	t.Helper()

	stacks, err := sample.NewStackTable(sample.WithStackTableCapacity(stackCap))
	require.NoError(t, err)
	counts, err := sample.NewCountTable(sample.WithCountTableCapacity(countCap))
	require.NoError(t, err)

	sampler, err := sample.NewSampler(
		sample.WithSamplerStackTable(stacks),
		sample.WithSamplerCountTable(counts),
	)
	require.NoError(t, err)

	return sampler
}

func TestNewSampler_Validation(t *testing.T) {
	counts, err := sample.NewCountTable()
	require.NoError(t, err)
	stacks, err := sample.NewStackTable()
	require.NoError(t, err)

	_, err = sample.NewSampler(sample.WithSamplerCountTable(counts))
	require.ErrorIs(t, err, sample.ErrNoStackTable)

	_, err = sample.NewSampler(sample.WithSamplerStackTable(stacks))
	require.ErrorIs(t, err, sample.ErrNoCountTable)
}

func TestSampler_IdleTaskFiltered(t *testing.T) {
	sampler := newTestSampler(t, 4096, 64)

	// Thread id 0 is the idle task: nothing is recorded for it even
	// when the context carries walkable stacks.
	sampler.Sample(sample.NewContext(
		sample.WithContextPID(0),
		sample.WithContextTID(0),
		sample.WithContextUserStack(testUserStack),
		sample.WithContextKernelStack(testKernelStack),
	))

	require.Zero(t, sampler.StackTable().Len())
	require.Zero(t, sampler.CountTable().Len())
}

func TestSampler_NilContextIgnored(t *testing.T) {
	sampler := newTestSampler(t, 4096, 64)
	sampler.Sample(nil)
	require.Zero(t, sampler.CountTable().Len())
}

func TestSampler_CaptureFailureStillCounts(t *testing.T) {
	sampler := newTestSampler(t, 4096, 64)

	// Only the user stack is walkable; the kernel side records its
	// failure in the key and the sample is still counted.
	sampler.Sample(sample.NewContext(
		sample.WithContextPID(42),
		sample.WithContextTID(43),
		sample.WithContextUserStack(testUserStack),
	))

	require.Equal(t, 1, sampler.StackTable().Len())
	require.Equal(t, 1, sampler.CountTable().Len())

	sampler.CountTable().Iterate(func(key sample.StackCountKey, count uint64) bool {
		require.Equal(t, uint32(42), key.PID)
		require.GreaterOrEqual(t, key.UserStackID, int32(0))
		require.Negative(t, key.KernelStackID)
		require.Equal(t, uint64(1), count)
		return true
	})
}

func TestSampler_FullCountTableDropsNewKeys(t *testing.T) {
	sampler := newTestSampler(t, 4096, 1)

	ctxA := sample.NewContext(sample.WithContextPID(1), sample.WithContextTID(1))
	sampler.Sample(ctxA)
	sampler.Sample(ctxA)

	// A second key finds the table full and the sample is dropped on
	// the floor; the resident row is untouched.
	sampler.Sample(sample.NewContext(sample.WithContextPID(2), sample.WithContextTID(2)))

	require.Equal(t, 1, sampler.CountTable().Len())
	sampler.CountTable().Iterate(func(key sample.StackCountKey, count uint64) bool {
		require.Equal(t, uint32(1), key.PID)
		require.Equal(t, uint64(2), count)
		return true
	})
}

func TestSampler_RoundTrip(t *testing.T) {
	sampler := newTestSampler(t, 4096, sample.DefaultMaxStackCounts)

	const (
		keys   = 30
		perKey = 10
	)
	for pid := uint32(1); pid <= keys; pid++ {
		ctx := sample.NewContext(sample.WithContextPID(pid), sample.WithContextTID(pid))
		for i := 0; i < perKey; i++ {
			sampler.Sample(ctx)
		}
	}

	var rows int
	var total uint64
	sampler.CountTable().Iterate(func(key sample.StackCountKey, count uint64) bool {
		rows++
		total += count
		require.Equal(t, uint64(perKey), count)
		return true
	})
	require.Equal(t, keys, rows)
	require.Equal(t, uint64(keys*perKey), total)
}

func TestSampler_SharedAndDivergentStacks(t *testing.T) {
	sampler := newTestSampler(t, 4096, 64)

	// Two firings with the same user and kernel stacks, then one with
	// the same user stack but no kernel stack: two keys, counts 2 and 1,
	// and a single shared user stack row.
	ctxFull := sample.NewContext(
		sample.WithContextPID(10),
		sample.WithContextTID(11),
		sample.WithContextUserStack(testUserStack),
		sample.WithContextKernelStack(testKernelStack),
	)
	ctxUserOnly := sample.NewContext(
		sample.WithContextPID(10),
		sample.WithContextTID(11),
		sample.WithContextUserStack(testUserStack),
	)

	sampler.Sample(ctxFull)
	sampler.Sample(ctxFull)
	sampler.Sample(ctxUserOnly)

	require.Equal(t, 2, sampler.StackTable().Len())
	require.Equal(t, 2, sampler.CountTable().Len())

	byCount := make(map[uint64]sample.StackCountKey)
	var userIDs []int32
	sampler.CountTable().Iterate(func(key sample.StackCountKey, count uint64) bool {
		byCount[count] = key
		userIDs = append(userIDs, key.UserStackID)
		return true
	})

	require.Len(t, byCount, 2)
	require.GreaterOrEqual(t, byCount[2].KernelStackID, int32(0))
	require.Negative(t, byCount[1].KernelStackID)
	require.Equal(t, userIDs[0], userIDs[1])
	require.Equal(t, testUserStack, sampler.StackTable().Frames(byCount[2].UserStackID))
	require.Equal(t, testKernelStack, sampler.StackTable().Frames(byCount[2].KernelStackID))
}

func TestSampler_ConcurrentSamplesAreExact(t *testing.T) {
	sampler := newTestSampler(t, 4096, sample.DefaultMaxStackCounts)

	ctx := sample.NewContext(
		sample.WithContextPID(7),
		sample.WithContextTID(8),
		sample.WithContextUserStack(testUserStack),
		sample.WithContextKernelStack(testKernelStack),
	)

	// Warm the stack rows so every concurrent firing resolves the same
	// ids and lands on a single key.
	sampler.Sample(ctx)

	const (
		workers = 8
		firings = 500
	)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < firings; i++ {
				sampler.Sample(ctx)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, sampler.CountTable().Len())
	var total uint64
	sampler.CountTable().Iterate(func(_ sample.StackCountKey, count uint64) bool {
		total += count
		return true
	})
	require.Equal(t, uint64(1+workers*firings), total)
}

func TestSampler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()

	stacks, err := sample.NewStackTable(sample.WithStackTableCapacity(4096))
	require.NoError(t, err)
	counts, err := sample.NewCountTable(sample.WithCountTableCapacity(1))
	require.NoError(t, err)

	m := metrics.NewSamplerMetrics(reg)
	sampler, err := sample.NewSampler(
		sample.WithSamplerStackTable(stacks),
		sample.WithSamplerCountTable(counts),
		sample.WithSamplerMetrics(m),
	)
	require.NoError(t, err)

	sampler.Sample(sample.NewContext(sample.WithContextTID(0)))
	sampler.Sample(sample.NewContext(sample.WithContextPID(1), sample.WithContextTID(1)))
	sampler.Sample(sample.NewContext(sample.WithContextPID(2), sample.WithContextTID(2)))

	require.Equal(t, float64(1), testutil.ToFloat64(m.Samples))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Drops.WithLabelValues("idle")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Drops.WithLabelValues("count_table_full")))
	require.Equal(t, float64(2), testutil.ToFloat64(m.StackFailures.WithLabelValues("user")))
}

func BenchmarkSampler_Sample(b *testing.B) {
	stacks, _ := sample.NewStackTable(sample.WithStackTableCapacity(4096))
	counts, _ := sample.NewCountTable()
	sampler, _ := sample.NewSampler(
		sample.WithSamplerStackTable(stacks),
		sample.WithSamplerCountTable(counts),
	)

	ctx := sample.NewContext(
		sample.WithContextPID(1),
		sample.WithContextTID(1),
		sample.WithContextUserStack(testUserStack),
		sample.WithContextKernelStack(testKernelStack),
	)

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			sampler.Sample(ctx)
		}
	})
}
