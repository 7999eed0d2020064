package constant

const (
	SinkTypeStdout = "stdout"
	SinkTypeStderr = "stderr"
	SinkTypeFile   = "file"
	SinkTypeTCP    = "tcp"
	SinkTypeHTTP   = "http"
	SinkTypeMemory = "memory"
)

const (
	SinkKindLocal   = "local"
	SinkKindNetwork = "network"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// SinkKind reports whether a sink type writes locally or over the network.
func SinkKind(sinkType string) string {
	switch sinkType {
	case SinkTypeTCP, SinkTypeHTTP:
		return SinkKindNetwork
	default:
		return SinkKindLocal
	}
}
