package log

import (
	"os"
	"path/filepath"

	E "github.com/sagernet/sing/common/exceptions"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingFile is a size-rotated log file. Zero limits keep the lumberjack
// defaults: 100 megabytes per file and no pruning.
type RotatingFile struct {
	Path       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool

	logger *lumberjack.Logger
}

// Open checks that the file can be created so that a bad path fails at
// startup instead of on the first write.
func (f *RotatingFile) Open() error {
	err := os.MkdirAll(filepath.Dir(f.Path), 0o755)
	if err != nil {
		return E.Cause(err, "create log directory")
	}
	file, err := os.OpenFile(f.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	file.Close()
	f.logger = &lumberjack.Logger{
		Filename:   f.Path,
		MaxSize:    f.MaxSize,
		MaxBackups: f.MaxBackups,
		MaxAge:     f.MaxAge,
		Compress:   f.Compress,
	}
	return nil
}

func (f *RotatingFile) Write(p []byte) (int, error) {
	if f.logger == nil {
		return 0, os.ErrClosed
	}
	return f.logger.Write(p)
}

func (f *RotatingFile) Close() error {
	if f.logger == nil {
		return nil
	}
	return f.logger.Close()
}
