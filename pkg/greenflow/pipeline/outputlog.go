package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

const tailChunkSize = 4096

// OutputLog is the append-only JSONL history of enriched readings. One
// process appends; any number of readers may Tail concurrently.
type OutputLog struct {
	path string
	mu   sync.Mutex // serializes appends within this process
}

// NewOutputLog ensures the parent directory of path exists
func NewOutputLog(path string) (*OutputLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &OutputLog{path: path}, nil
}

// Path returns the log file location
func (l *OutputLog) Path() string {
	return l.path
}

// Append writes records as one batch and syncs the file before returning
func (l *OutputLog) Append(records []types.EnrichedReading) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to output log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync output log: %w", err)
	}
	return f.Close()
}

// Tail returns up to n of the most recent complete records, oldest first.
// A missing file yields no records. A final line without its newline is
// still being written and is ignored, as are lines that fail to decode.
func (l *OutputLog) Tail(n int) ([]types.EnrichedReading, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open output log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat output log: %w", err)
	}

	var (
		out     []types.EnrichedReading // newest first
		carry   []byte
		pos     = info.Size()
		trimmed bool // carry ends at a record boundary
	)
	for pos > 0 && len(out) < n {
		size := min(int64(tailChunkSize), pos)
		pos -= size
		chunk := make([]byte, size, size+int64(len(carry)))
		if _, err := f.ReadAt(chunk, pos); err != nil {
			return nil, fmt.Errorf("failed to read output log: %w", err)
		}
		carry = append(chunk, carry...)

		if !trimmed {
			idx := bytes.LastIndexByte(carry, '\n')
			if idx < 0 {
				continue
			}
			carry = carry[:idx]
			trimmed = true
		}

		for len(out) < n {
			idx := bytes.LastIndexByte(carry, '\n')
			if idx < 0 {
				break
			}
			out = appendDecoded(out, carry[idx+1:])
			carry = carry[:idx]
		}
	}
	if trimmed && pos == 0 && len(out) < n {
		out = appendDecoded(out, carry)
	}

	slices.Reverse(out)
	return out, nil
}

func appendDecoded(out []types.EnrichedReading, line []byte) []types.EnrichedReading {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return out
	}
	var rec types.EnrichedReading
	if err := json.Unmarshal(line, &rec); err != nil {
		klog.V(4).InfoS("Ignoring undecodable output log line", "err", err)
		return out
	}
	return append(out, rec)
}
