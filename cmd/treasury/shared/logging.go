package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger configures logging per the server settings. When a log file
// is given, output goes to both stderr and the file; the returned closer
// releases the file handle.
func SetupLogger(level, file string) (*log.Logger, func(), error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	var w io.Writer = os.Stderr
	closer := func() {}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = func() { _ = f.Close() }
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
	return logger, closer, nil
}
