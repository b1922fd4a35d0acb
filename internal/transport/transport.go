package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates the directory and any missing parents. It is idempotent.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("transport: create directory %s: %w", path, err)
	}
	return nil
}

// WriteJSON atomically writes v as indented JSON to path. The data is written
// to a temporary file in the same directory and renamed into place, so
// concurrent readers never observe a partially written file.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("transport: marshal %s: %w", path, err)
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("transport: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("transport: rename temp file: %w", err)
	}
	return nil
}

// ReadJSON reads the JSON file at path into out. It returns (false, nil) when
// the file does not exist, so callers can treat a missing file as an empty
// initial state rather than an error.
func ReadJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("transport: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("transport: unmarshal %s: %w", path, err)
	}
	return true, nil
}

// WriteJSONExclusive writes v as JSON to path, failing if the file already
// exists. Used for write-once records such as the team config. The caller is
// expected to hold the relevant lock so the exists-check and create are not
// racing another writer.
func WriteJSONExclusive(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("transport: marshal %s: %w", path, err)
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("transport: %s: %w", path, ErrAlreadyExists)
		}
		return fmt.Errorf("transport: create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("transport: write %s: %w", path, err)
	}
	return f.Close()
}

// AppendLine marshals v and appends it as a single JSONL line to path.
// Lines are written with a single O_APPEND write; on POSIX systems writes
// below PIPE_BUF are atomic, so concurrent appenders from different
// processes do not interleave and no lock is required.
func AppendLine(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transport: marshal line: %w", err)
	}
	data = append(data, '\n')

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("transport: open for append: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("transport: append: %w", err)
	}
	return f.Close()
}

// ReadLines returns the raw JSONL lines of path in file order. A missing
// file yields (nil, nil). Empty lines are skipped; a truncated final line
// (a writer mid-append) is returned as-is and left to the caller to reject.
func ReadLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("transport: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("transport: scan %s: %w", path, err)
	}
	return lines, nil
}
