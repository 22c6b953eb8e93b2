package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/maxgio92/xprof/pkg/sample"
)

// Record is one aggregated stack count, resolved back to its frames.
// A negative stack id means the walk failed at capture time and no
// frames exist for that side.
type Record struct {
	PID           uint32   `json:"pid"`
	UserStackID   int32    `json:"user_stack_id"`
	KernelStackID int32    `json:"kernel_stack_id"`
	UserStack     []uint64 `json:"user_stack,omitempty"`
	KernelStack   []uint64 `json:"kernel_stack,omitempty"`
	Count         uint64   `json:"count"`
}

// Drain resolves every count row against the stack table and returns
// the records ordered by count, highest first.
func Drain(stacks *sample.StackTable, counts *sample.CountTable) []Record {
	records := make([]Record, 0, counts.Len())
	counts.Iterate(func(key sample.StackCountKey, count uint64) bool {
		records = append(records, Record{
			PID:           key.PID,
			UserStackID:   key.UserStackID,
			KernelStackID: key.KernelStackID,
			UserStack:     stacks.Frames(key.UserStackID),
			KernelStack:   stacks.Frames(key.KernelStackID),
			Count:         count,
		})
		return true
	})

	sort.Slice(records, func(i, j int) bool {
		if records[i].Count != records[j].Count {
			return records[i].Count > records[j].Count
		}
		return records[i].PID < records[j].PID
	})

	return records
}

type ProfileReport struct {
	Records      []Record `json:"stack_counts"`
	TotalSamples uint64   `json:"total_samples"`
	Frequency    uint64   `json:"frequency_hz"`
	DurationSecs float64  `json:"duration_seconds"`
}

type ProfileReportOption func(*ProfileReport)

func NewReport(opts ...ProfileReportOption) *ProfileReport {
	report := new(ProfileReport)
	for _, opt := range opts {
		opt(report)
	}
	for _, record := range report.Records {
		report.TotalSamples += record.Count
	}

	return report
}

func WithReportRecords(records []Record) ProfileReportOption {
	return func(o *ProfileReport) {
		o.Records = records
	}
}

func WithReportFrequency(frequency uint64) ProfileReportOption {
	return func(o *ProfileReport) {
		o.Frequency = frequency
	}
}

func WithReportDuration(seconds float64) ProfileReportOption {
	return func(o *ProfileReport) {
		o.DurationSecs = seconds
	}
}

func (r *ProfileReport) WriteReport(w io.Writer) error {
	encoder := json.NewEncoder(w)
	return encoder.Encode(r)
}
