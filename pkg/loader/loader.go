//go:build linux

package loader

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"unsafe"

	"github.com/cilium/ebpf"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/maxgio92/xprof/pkg/report"
	"github.com/maxgio92/xprof/pkg/sample"
)

// Loader loads a sampling BPF object, attaches its program to a
// per-CPU software clock perf event and drains the kernel-resident
// tables into records.
type Loader struct {
	coll *ebpf.Collection
	fds  []int

	*LoaderOptions
}

func NewLoader(opts ...LoaderOption) (*Loader, error) {
	loader := &Loader{
		LoaderOptions: &LoaderOptions{
			progName:      DefaultProgName,
			countsMapName: DefaultCountsMapName,
			stacksMapName: DefaultStacksMapName,
			frequency:     DefaultFrequency,
			targetPID:     -1,
		},
	}
	for _, opt := range opts {
		opt(loader)
	}
	if loader.objPath == "" {
		return nil, ErrNoObjectPath
	}

	return loader, nil
}

// Load raises the memlock limit and loads the BPF object into the
// kernel.
func (l *Loader) Load() error {
	err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &unix.Rlimit{
		Cur: unix.RLIM_INFINITY,
		Max: unix.RLIM_INFINITY,
	})
	if err != nil {
		return errors.Wrap(err, "failed to raise RLIMIT_MEMLOCK")
	}

	spec, err := ebpf.LoadCollectionSpec(l.objPath)
	if err != nil {
		return errors.Wrapf(err, "failed to parse BPF object: %v", l.objPath)
	}

	l.coll, err = ebpf.NewCollection(spec)
	if err != nil {
		return errors.Wrapf(err, "failed to load BPF object: %v", l.objPath)
	}

	if l.coll.Programs[l.progName] == nil {
		l.coll.Close()
		l.coll = nil
		return errors.Wrapf(ErrProgNotFound, "%v", l.progName)
	}
	if l.coll.Maps[l.countsMapName] == nil || l.coll.Maps[l.stacksMapName] == nil {
		l.coll.Close()
		l.coll = nil
		return ErrMapNotFound
	}

	return nil
}

// Attach opens a software CPU clock perf event per CPU at the
// configured frequency and wires the sampling program to each.
func (l *Loader) Attach() error {
	if l.coll == nil {
		return ErrNotLoaded
	}

	progFD := l.coll.Programs[l.progName].FD()
	for cpu := 0; cpu < runtime.NumCPU(); cpu++ {
		fd, err := unix.PerfEventOpen(
			&unix.PerfEventAttr{
				Type:   unix.PERF_TYPE_SOFTWARE,
				Config: unix.PERF_COUNT_SW_CPU_CLOCK,
				Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
				Sample: uint64(l.frequency),
				Bits:   unix.PerfBitDisabled | unix.PerfBitFreq,
			},
			l.targetPID,
			cpu,
			-1,
			unix.PERF_FLAG_FD_CLOEXEC,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to open the perf event on cpu %d", cpu)
		}
		l.fds = append(l.fds, fd)

		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_SET_BPF, progFD); err != nil {
			return errors.Wrap(err, "failed to attach BPF program to perf event")
		}
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
			return errors.Wrap(err, "failed to enable the perf event")
		}
	}

	return nil
}

// Drain reads the kernel count and stack tables and resolves them the
// same way the in-process tables are drained.
func (l *Loader) Drain() ([]report.Record, error) {
	if l.coll == nil {
		return nil, ErrNotLoaded
	}

	counts := l.coll.Maps[l.countsMapName]
	stacks := l.coll.Maps[l.stacksMapName]

	var records []report.Record
	var (
		it   = counts.Iterate()
		key  sample.StackCountKey
		seen uint64
	)
	for it.Next(&key, &seen) {
		records = append(records, report.Record{
			PID:           key.PID,
			UserStackID:   key.UserStackID,
			KernelStackID: key.KernelStackID,
			UserStack:     l.lookupStack(stacks, key.UserStackID),
			KernelStack:   l.lookupStack(stacks, key.KernelStackID),
			Count:         seen,
		})
	}
	if err := it.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read the %v map", l.countsMapName)
	}

	return records, nil
}

func (l *Loader) lookupStack(stacks *ebpf.Map, id int32) []uint64 {
	if id < 0 {
		return nil
	}

	stackBytes, err := stacks.LookupBytes(id)
	if err != nil || stackBytes == nil {
		l.logDroppedStack(id, err)
		return nil
	}

	var trace sample.StackTrace
	if err := binary.Read(bytes.NewBuffer(stackBytes), binary.LittleEndian, trace[:]); err != nil {
		l.logDroppedStack(id, err)
		return nil
	}

	return trace.Frames()
}

func (l *Loader) logDroppedStack(id int32, err error) {
	if l.logger == nil {
		return
	}
	l.logger.Debug().Err(err).Int32("stack_id", id).Msg("failed to resolve stack trace")
}

// Close disables the perf events and unloads the BPF object.
func (l *Loader) Close() error {
	var firstErr error
	for _, fd := range l.fds {
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to disable the perf event")
		}
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to close the perf event")
		}
	}
	l.fds = nil

	if l.coll != nil {
		l.coll.Close()
		l.coll = nil
	}

	return firstErr
}
