package sample

const (
	// MaxStackDepth is the maximum number of frames kept per stack
	// trace, as for the default PERF_MAX_STACK_DEPTH.
	MaxStackDepth = 127

	// DefaultMaxStackTraces is the default maximum number of distinct
	// stack traces held by a StackTable at the same time.
	DefaultMaxStackTraces = 1024

	// DefaultMaxStackCounts is the default maximum number of distinct
	// (pid, user stack, kernel stack) keys held by a CountTable.
	DefaultMaxStackCounts = 10240
)

// CaptureFlags selects which stack a StackTable capture walks.
type CaptureFlags uint32

// CaptureUserStack selects the user-space stack. The zero flag value
// selects the kernel-space stack. The bit value mirrors
// BPF_F_USER_STACK so keys produced by this engine and by the kernel
// probe stay comparable.
const CaptureUserStack CaptureFlags = 1 << 8

// StackTrace is an array of instruction pointers (IP), zero-padded
// past the last captured frame.
type StackTrace [MaxStackDepth]uint64

// Frames returns the leading non-zero frames of the trace.
func (t StackTrace) Frames() []uint64 {
	for i, ip := range t {
		if ip == 0 {
			return append([]uint64{}, t[:i]...)
		}
	}
	return append([]uint64{}, t[:]...)
}

// StackCountKey identifies one sampled (process, user stack, kernel
// stack) combination. Stack identifiers are StackTable row ids when
// non-negative, or a negative sentinel when the capture failed. The
// key is compared and hashed by content only.
type StackCountKey struct {
	// PID is the thread-group id of the sampled task.
	PID uint32

	// UserStackID indexes the user-space stack in the StackTable.
	UserStackID int32

	// KernelStackID indexes the kernel-space stack in the StackTable.
	KernelStackID int32
}
