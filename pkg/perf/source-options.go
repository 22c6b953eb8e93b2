package perf

import (
	log "github.com/rs/zerolog"
)

type SourceOptions struct {
	frequency uint64
	cpus      int

	reader  ContextReader
	handler Handler

	logger *log.Logger
}

type SourceOption func(*Source)

func WithFrequency(frequency uint64) SourceOption {
	return func(opts *Source) {
		opts.frequency = frequency
	}
}

func WithCPUs(cpus int) SourceOption {
	return func(opts *Source) {
		opts.cpus = cpus
	}
}

func WithReader(reader ContextReader) SourceOption {
	return func(opts *Source) {
		opts.reader = reader
	}
}

func WithHandler(handler Handler) SourceOption {
	return func(opts *Source) {
		opts.handler = handler
	}
}

func WithLogger(logger *log.Logger) SourceOption {
	return func(opts *Source) {
		opts.logger = logger
	}
}
