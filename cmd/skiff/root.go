package main

import (
	"context"
	"time"

	"skiff/config"
	"skiff/internal/topology"
)

const defaultTopologyFile = "skiff.yaml"

// rootOptions carries persistent flags plus config-file defaults.
// Flags win; config fills the gaps.
type rootOptions struct {
	debug    bool
	noColor  bool
	file     string
	project  string
	envFiles []string

	logLevel string
	grace    time.Duration
}

func (o *rootOptions) applyDefaults(cfg *config.Config) {
	if o.file == "" {
		o.file = cfg.File
	}
	if o.file == "" {
		o.file = defaultTopologyFile
	}
	if o.project == "" {
		o.project = cfg.Project
	}
	if len(o.envFiles) == 0 {
		o.envFiles = cfg.EnvFiles
	}
	o.logLevel = cfg.LogLevel
	if cfg.Grace != "" {
		if d, err := time.ParseDuration(cfg.Grace); err == nil {
			o.grace = d
		}
	}
}

func loadTopology(ctx context.Context, opts *rootOptions) (*topology.Topology, error) {
	return topology.LoadFile(ctx, opts.file, topology.LoadOptions{
		ProjectName: opts.project,
		Env:         topology.OSEnv(),
		EnvFiles:    opts.envFiles,
	})
}
