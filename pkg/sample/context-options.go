package sample

type ContextOption func(*Context)

func WithContextPID(pid uint32) ContextOption {
	return func(c *Context) {
		c.pid = pid
	}
}

func WithContextTID(tid uint32) ContextOption {
	return func(c *Context) {
		c.tid = tid
	}
}

func WithContextRegs(regs Registers) ContextOption {
	return func(c *Context) {
		c.regs = regs
	}
}

func WithContextUserStack(frames []uint64) ContextOption {
	return func(c *Context) {
		c.userStack = frames
	}
}

func WithContextKernelStack(frames []uint64) ContextOption {
	return func(c *Context) {
		c.kernelStack = frames
	}
}
