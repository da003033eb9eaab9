package main

import (
	"time"

	"github.com/vnykmshr/fanoutq"
	"github.com/vnykmshr/fanoutq/internal/config"
)

// openQueue builds Options from the persistent flags (layering an optional
// --config file under them) and opens the queue named by --queue in --dir.
func openQueue() (*fanoutq.Queue, error) {
	opts := fanoutq.DefaultOptions()
	if flagConfig != "" {
		fileCfg, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		opts = fileCfg.ToOptions()
	}

	if flagMaxFileSize > 0 {
		opts.MaxFileSize = flagMaxFileSize
	}
	if flagAutoSync {
		opts.AutoSync = true
	}
	if d, err := time.ParseDuration(flagSyncInterval); err == nil && d > 0 {
		opts.SyncInterval = d
	}
	if flagCheckpointSecs > 0 {
		opts.CheckpointInterval = time.Duration(flagCheckpointSecs) * time.Second
	}
	opts.MetricsCollector = fanoutq.NewMetricsCollector(flagQueue)

	return fanoutq.Open(flagDir, flagQueue, opts)
}
