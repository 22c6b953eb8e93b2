package sample

// Sampler is the per-event handler: it captures both stacks of the
// execution context it is handed and accounts the sample in the count
// table. One Sample call is a single bounded unit of work with no
// blocking, no retries and no logging; every failure path is a silent
// abort of that one sample.
type Sampler struct {
	*SamplerOptions
}

func NewSampler(opts ...SamplerOption) (*Sampler, error) {
	s := &Sampler{
		SamplerOptions: new(SamplerOptions),
	}
	for _, f := range opts {
		f(s)
	}
	if s.stacks == nil {
		return nil, ErrNoStackTable
	}
	if s.counts == nil {
		return nil, ErrNoCountTable
	}

	return s, nil
}

// Sample handles one sampling event. It may be called concurrently
// from any number of goroutines; counters for identical keys
// accumulate exactly.
func (s *Sampler) Sample(ctx *Context) {
	if ctx == nil {
		return
	}

	// Idle-task samples carry no useful attribution; discard them
	// before touching either table.
	if ctx.TID() == 0 {
		if s.metrics != nil {
			s.metrics.Drops.WithLabelValues("idle").Inc()
		}
		return
	}

	key := StackCountKey{PID: ctx.PID()}

	// Both captures may fail independently; the negative sentinel is
	// kept in the key so that "stack unavailable" occurrences stay
	// distinguishable from any real stack id.
	key.UserStackID = s.stacks.Capture(ctx, CaptureUserStack)
	key.KernelStackID = s.stacks.Capture(ctx, 0)

	if s.metrics != nil {
		if key.UserStackID < 0 {
			s.metrics.StackFailures.WithLabelValues("user").Inc()
		}
		if key.KernelStackID < 0 {
			s.metrics.StackFailures.WithLabelValues("kernel").Inc()
		}
	}

	seen := s.counts.LookupOrInit(key, 0)
	if seen == nil {
		// Count table full: the sample is lost, with no signal beyond
		// the optional drop counter.
		if s.metrics != nil {
			s.metrics.Drops.WithLabelValues("count_table_full").Inc()
		}
		return
	}
	seen.Add(1)

	if s.metrics != nil {
		s.metrics.Samples.Inc()
	}
}

// StackTable returns the table the sampler captures stacks into.
func (s *Sampler) StackTable() *StackTable {
	return s.stacks
}

// CountTable returns the table the sampler accounts samples in.
func (s *Sampler) CountTable() *CountTable {
	return s.counts
}
