package procscan

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"

	"github.com/maxgio92/xprof/pkg/sample"
)

// DefaultScanTTL is how long a procfs scan is reused before the task
// list is walked again.
const DefaultScanTTL = 10 * time.Millisecond

const taskStateRunning = "R"

// Scanner builds sampling contexts out of procfs: at each read it
// reports the threads currently in the running state, attributed to
// the CPU the kernel last scheduled them on.
//
// Stacks cannot be walked from procfs, so the emitted contexts carry
// none and stack captures fail with their usual sentinels.
type Scanner struct {
	fs procfs.FS

	mu    sync.Mutex
	last  time.Time
	byCPU map[int][]*sample.Context

	*ScannerOptions
}

func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	s := &Scanner{
		ScannerOptions: &ScannerOptions{
			procRoot: procfs.DefaultMountPoint,
			ttl:      DefaultScanTTL,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, ErrBadScanTTL
	}

	fs, err := procfs.NewFS(s.procRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open procfs at %s", s.procRoot)
	}
	s.fs = fs

	return s, nil
}

// Read returns the contexts of the threads last seen running on the
// given CPU. The underlying procfs walk is shared across CPUs and
// refreshed at most once per TTL.
func (s *Scanner) Read(cpu int) ([]*sample.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byCPU == nil || time.Since(s.last) > s.ttl {
		byCPU, err := s.scan()
		if err != nil {
			return nil, err
		}
		s.byCPU = byCPU
		s.last = time.Now()
	}

	return s.byCPU[cpu], nil
}

func (s *Scanner) scan() (map[int][]*sample.Context, error) {
	procs, err := s.fs.AllProcs()
	if err != nil {
		return nil, errors.Wrap(err, "cannot list processes")
	}

	byCPU := make(map[int][]*sample.Context)
	self := os.Getpid()
	for _, proc := range procs {
		// Sampling our own scan loop would drown out the targets.
		if proc.PID == self {
			continue
		}
		if len(s.pids) > 0 {
			if _, ok := s.pids[uint32(proc.PID)]; !ok {
				continue
			}
		}

		threads, err := s.fs.AllThreads(proc.PID)
		if err != nil {
			// The process exited mid-scan.
			continue
		}
		for _, thread := range threads {
			stat, err := thread.Stat()
			if err != nil {
				continue
			}
			if stat.State != taskStateRunning {
				continue
			}

			cpu := int(stat.Processor)
			byCPU[cpu] = append(byCPU[cpu], sample.NewContext(
				sample.WithContextPID(uint32(proc.PID)),
				sample.WithContextTID(uint32(thread.PID)),
			))
		}
	}

	return byCPU, nil
}
