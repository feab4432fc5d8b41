package repositories

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kjk/common/atomicfile"
)

// Return the file contents and whether the file exists. A missing file
// is not an error.
func readIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Append data to path, creating the file if needed. The write is synced
// before returning so a reported success is on disk.
func appendToFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Replace path with data through atomicfile, so readers see either the
// old or the new contents. The temp file is created 0600; perm is
// restored once the rename is done.
func rewriteFile(path string, data []byte, perm fs.FileMode) error {
	f, err := atomicfile.New(path)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

// Make sure a non-empty file ends in a newline so the next append starts
// on its own line. content must be the current file contents.
// Reports whether the file was rewritten.
func ensureTrailingNewline(path string, content []byte) (bool, error) {
	if len(content) == 0 || content[len(content)-1] == '\n' {
		return false, nil
	}

	perm := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	repaired := make([]byte, 0, len(content)+1)
	repaired = append(repaired, content...)
	repaired = append(repaired, '\n')

	if err := rewriteFile(path, repaired, perm); err != nil {
		return false, fmt.Errorf("repair trailing newline %q: %w", path, err)
	}
	return true, nil
}
