package option

// Options is the root of a tradelog configuration file.
type Options struct {
	Log       *LogOptions       `json:"log,omitempty"`
	Replay    *ReplayOptions    `json:"replay,omitempty"`
	StatusAPI *StatusAPIOptions `json:"status_api,omitempty"`
}

type ReplayOptions struct {
	// Path of a newline-delimited record file; "-" reads standard input.
	Path  string `json:"path,omitempty"`
	Start string `json:"start,omitempty"`
}

// StatusAPIOptions enables the HTTP status API of a running pipeline.
type StatusAPIOptions struct {
	Listen string `json:"listen"`
	Secret string `json:"secret,omitempty"`
}
