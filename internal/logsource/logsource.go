package logsource

import "github.com/gourav-shinde/jlog/internal/model"

// LogSource is a unified interface for all log input sources (file, tcp,
// stdin). Implementations own their readers; the pipeline only consumes
// the channel.
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of raw lines
	Stop()                              // graceful shutdown
	Name() string                       // "file", "tcp", "stdin"
}
