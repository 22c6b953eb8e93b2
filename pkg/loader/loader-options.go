//go:build linux

package loader

import (
	log "github.com/rs/zerolog"
)

const (
	DefaultProgName      = "do_sample"
	DefaultCountsMapName = "counts"
	DefaultStacksMapName = "stack_traces"
	DefaultFrequency     = 100
)

type LoaderOptions struct {
	objPath       string
	progName      string
	countsMapName string
	stacksMapName string

	targetPID int
	frequency uint32

	logger *log.Logger
}

type LoaderOption func(*Loader)

func WithObjPath(objPath string) LoaderOption {
	return func(opts *Loader) {
		opts.objPath = objPath
	}
}

func WithProgName(progName string) LoaderOption {
	return func(opts *Loader) {
		opts.progName = progName
	}
}

func WithCountsMapName(countsMapName string) LoaderOption {
	return func(opts *Loader) {
		opts.countsMapName = countsMapName
	}
}

func WithStacksMapName(stacksMapName string) LoaderOption {
	return func(opts *Loader) {
		opts.stacksMapName = stacksMapName
	}
}

func WithTargetPID(targetPID int) LoaderOption {
	return func(opts *Loader) {
		opts.targetPID = targetPID
	}
}

func WithFrequency(frequency uint32) LoaderOption {
	return func(opts *Loader) {
		opts.frequency = frequency
	}
}

func WithLoaderLogger(logger *log.Logger) LoaderOption {
	return func(opts *Loader) {
		opts.logger = logger
	}
}
