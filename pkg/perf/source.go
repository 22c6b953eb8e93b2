package perf

import (
	"context"
	"runtime"
	"time"

	log "github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/maxgio92/xprof/pkg/sample"
)

// DefaultFrequency is the per-CPU sampling rate in hertz.
const DefaultFrequency uint64 = 100

// Handler consumes the sampling contexts produced by a Source.
type Handler interface {
	Sample(ctx *sample.Context)
}

// ContextReader builds the sampling contexts observed on a CPU at the
// moment a timer fires.
type ContextReader interface {
	Read(cpu int) ([]*sample.Context, error)
}

// Source fires a sampling timer per CPU at a fixed frequency and feeds
// the observed contexts to a handler.
type Source struct {
	*SourceOptions
}

func NewSource(opts ...SourceOption) (*Source, error) {
	s := &Source{
		SourceOptions: &SourceOptions{
			frequency: DefaultFrequency,
			cpus:      runtime.NumCPU(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reader == nil {
		return nil, ErrNoReader
	}
	if s.handler == nil {
		return nil, ErrNoHandler
	}
	if s.frequency == 0 || s.frequency > uint64(time.Second) {
		return nil, ErrBadFrequency
	}
	if s.cpus <= 0 {
		return nil, ErrBadCPUs
	}
	if s.logger == nil {
		nop := log.Nop()
		s.logger = &nop
	}

	return s, nil
}

// Run drives one sampling loop per CPU until the context is canceled.
// Read errors are not fatal: the firing is skipped and the loop keeps
// going.
func (s *Source) Run(ctx context.Context) error {
	interval := time.Duration(uint64(time.Second) / s.frequency)

	s.logger.Debug().
		Uint64("frequency", s.frequency).
		Int("cpus", s.cpus).
		Dur("interval", interval).
		Msg("starting sampling source")

	g, ctx := errgroup.WithContext(ctx)
	for cpu := 0; cpu < s.cpus; cpu++ {
		cpu := cpu
		g.Go(func() error {
			return s.run(ctx, cpu, interval)
		})
	}

	return g.Wait()
}

func (s *Source) run(ctx context.Context, cpu int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			contexts, err := s.reader.Read(cpu)
			if err != nil {
				s.logger.Debug().Err(err).Int("cpu", cpu).Msg("skipping sampling timer firing")
				continue
			}
			for _, c := range contexts {
				s.handler.Sample(c)
			}
		}
	}
}
