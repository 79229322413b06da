package history

import "time"

const (
	DefaultMaxEntries        = 500
	DefaultBatcherMaxSize    = 20
	DefaultBatcherFlushDelay = 2 * time.Second
	DefaultRetention         = 90 * 24 * time.Hour
	DefaultPruneSchedule     = "@daily"
)
