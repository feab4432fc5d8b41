package obs

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kjk/common/filerotate"
)

// Tee the standard logger into an append-only file next to stderr.
// An empty path keeps stderr only. The returned closer releases the file.
func SetupLogOutput(path string) (io.Closer, error) {
	if path == "" {
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("setup log output: create dir for %q: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("setup log output: open %q: %w", path, err)
	}

	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

// Tee the standard logger into daily files prefix+YYYY-MM-DD.log under
// dir, next to stderr. The returned closer releases the current file.
func SetupRotatingLogOutput(dir, prefix string) (io.Closer, error) {
	f, err := filerotate.New(&filerotate.Config{
		PathIfShouldRotate: dailyLogPath(dir, prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("setup log output: open rotating log in %q: %w", dir, err)
	}

	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

func dailyLogPath(dir, prefix string) func(created, now time.Time) string {
	return func(created, now time.Time) string {
		// zero creation time means nothing is open yet
		if !created.IsZero() && created.Year() == now.Year() && filerotate.IsSameDay(created, now) {
			return ""
		}
		return filepath.Join(dir, prefix+now.Format("2006-01-02")+".log")
	}
}
