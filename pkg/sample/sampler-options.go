package sample

import (
	"github.com/maxgio92/xprof/pkg/metrics"
)

type SamplerOptions struct {
	stacks  *StackTable
	counts  *CountTable
	metrics *metrics.SamplerMetrics
}

type SamplerOption func(*Sampler)

func WithSamplerStackTable(stacks *StackTable) SamplerOption {
	return func(s *Sampler) {
		s.stacks = stacks
	}
}

func WithSamplerCountTable(counts *CountTable) SamplerOption {
	return func(s *Sampler) {
		s.counts = counts
	}
}

// WithSamplerMetrics enables drop and capture-failure accounting. The
// sampler works without it; counter updates are single atomic adds and
// never touch the table contract.
func WithSamplerMetrics(m *metrics.SamplerMetrics) SamplerOption {
	return func(s *Sampler) {
		s.metrics = m
	}
}
