package sample

// Context is the execution context snapshot one sampling event carries:
// the task identity, the register file, and the stacks the event source
// already walked. A nil stack means the walk was not possible for that
// side (e.g. a task observed from outside the kernel).
type Context struct {
	pid  uint32
	tid  uint32
	regs Registers

	userStack   []uint64
	kernelStack []uint64
}

func NewContext(opts ...ContextOption) *Context {
	ctx := new(Context)
	for _, f := range opts {
		f(ctx)
	}

	return ctx
}

// PID returns the thread-group id of the sampled task.
func (c *Context) PID() uint32 {
	return c.pid
}

// TID returns the thread id of the sampled task. A zero TID identifies
// the per-CPU idle task.
func (c *Context) TID() uint32 {
	return c.tid
}

// Regs returns the register file snapshot taken when the event fired.
func (c *Context) Regs() Registers {
	return c.regs
}

func (c *Context) stack(flags CaptureFlags) []uint64 {
	if flags&CaptureUserStack != 0 {
		return c.userStack
	}
	return c.kernelStack
}
