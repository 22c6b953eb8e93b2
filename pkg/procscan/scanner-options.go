package procscan

import (
	"time"
)

type ScannerOptions struct {
	procRoot string
	ttl      time.Duration
	pids     map[uint32]struct{}
}

type ScannerOption func(*Scanner)

func WithProcRoot(procRoot string) ScannerOption {
	return func(opts *Scanner) {
		opts.procRoot = procRoot
	}
}

func WithScanTTL(ttl time.Duration) ScannerOption {
	return func(opts *Scanner) {
		opts.ttl = ttl
	}
}

func WithTargetPIDs(pids ...uint32) ScannerOption {
	return func(opts *Scanner) {
		if opts.pids == nil {
			opts.pids = make(map[uint32]struct{}, len(pids))
		}
		for _, pid := range pids {
			opts.pids[pid] = struct{}{}
		}
	}
}
