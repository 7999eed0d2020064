package constant

import "time"

const (
	DefaultQueueSize      = 1024
	DefaultShutdownGrace  = 5 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultDialTimeout    = 5 * time.Second
	DefaultReconnectDelay = time.Second
	DefaultBatchSize      = 100
	DefaultFlushInterval  = 2 * time.Second
	DefaultHTTPTimeout    = 10 * time.Second
	StatusReadTimeout     = 5 * time.Second
	DetachTimeout         = 200 * time.Millisecond
)

const (
	DefaultMaxDepth      = 10
	DefaultMaxCollection = 1000
	DefaultMaxNodes      = 10000
	TemplateCacheSize    = 1000
	MaxAlignment         = 1024
	DiagnosticBuffer     = 256
)
