package option

import "github.com/sagernet/sing/common/json/badoption"

type LogOptions struct {
	Disabled      bool                   `json:"disabled,omitempty"`
	Level         string                 `json:"level,omitempty"`
	Sinks         map[string]SinkOptions `json:"sinks,omitempty"`
	Enrichers     []string               `json:"enrichers,omitempty"`
	Destructure   []DestructureRule      `json:"destructure,omitempty"`
	ScalarTypes   []string               `json:"scalar_types,omitempty"`
	QueueSize     int                    `json:"queue_size,omitempty"`
	MaxDepth      int                    `json:"max_depth,omitempty"`
	ShutdownGrace badoption.Duration     `json:"shutdown_grace,omitempty"`
}

// SinkOptions configures one output destination. Fields that do not apply to
// the sink type are ignored.
type SinkOptions struct {
	Type         string `json:"type"`
	Level        string `json:"level,omitempty"`
	Format       string `json:"format,omitempty"` // "text" or "json"
	DisableColor bool   `json:"disable_color,omitempty"`
	QueueSize    int    `json:"queue_size,omitempty"`

	// file
	Path       string `json:"path,omitempty"`
	MaxSize    int    `json:"max_size,omitempty"` // megabytes
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAge     int    `json:"max_age,omitempty"` // days
	Compress   bool   `json:"compress,omitempty"`

	// tcp
	Address        string             `json:"address,omitempty"`
	DialTimeout    badoption.Duration `json:"dial_timeout,omitempty"`
	WriteTimeout   badoption.Duration `json:"write_timeout,omitempty"`
	ReconnectDelay badoption.Duration `json:"reconnect_delay,omitempty"`

	TCPKeepAlive         badoption.Duration `json:"tcp_keep_alive,omitempty"`
	TCPKeepAliveInterval badoption.Duration `json:"tcp_keep_alive_interval,omitempty"`
	DisableTCPKeepAlive  bool               `json:"disable_tcp_keep_alive,omitempty"`

	// http
	URL           string             `json:"url,omitempty"`
	APIKey        string             `json:"api_key,omitempty"`
	BatchSize     int                `json:"batch_size,omitempty"`
	FlushInterval badoption.Duration `json:"flush_interval,omitempty"`
	Timeout       badoption.Duration `json:"timeout,omitempty"`
	Gzip          bool               `json:"gzip,omitempty"`
}

// DestructureRule projects the named type onto a fixed list of its fields.
type DestructureRule struct {
	Type   string   `json:"type"`
	Fields []string `json:"fields"`
}
