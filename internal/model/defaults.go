package model

import "time"

// Shared defaults used by the pipeline and the server binary.
const (
	DefaultBucketGranularity = time.Minute
	DefaultDetectCadence     = 2 * time.Second
	DefaultTopN              = 10
	DefaultEntryBuffer       = 1000

	// DefaultProgressThreshold is the known-input size above which progress
	// reporting is enabled.
	DefaultProgressThreshold = 10 * 1024 * 1024
)
