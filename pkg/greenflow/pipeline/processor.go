package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/elevated-systems/greenflow/pkg/greenflow/clock"
	"github.com/elevated-systems/greenflow/pkg/greenflow/extractor"
	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

const maxLineSize = 1 << 20

// rawReading is the wire shape of one batch line. Pointers distinguish
// absent fields from zero values.
type rawReading struct {
	Source    *string  `json:"source"`
	Timestamp *float64 `json:"timestamp"`
	CO2PPM    *float64 `json:"co2_ppm"`
	Location  *string  `json:"location"`
}

// BatchResult is the outcome of processing one batch source
type BatchResult struct {
	Records       []types.EnrichedReading // in file order
	Skipped       int                     // malformed lines
	SourceMissing bool
}

// Processor enriches JSONL batch files
type Processor struct {
	extractor     *extractor.Extractor
	clock         clock.Clock
	defaultSource string
}

// NewProcessor creates a batch processor. Readings without a source are
// attributed to defaultSource; readings without a timestamp get clk's now.
func NewProcessor(ex *extractor.Extractor, clk clock.Clock, defaultSource string) *Processor {
	return &Processor{
		extractor:     ex,
		clock:         clk,
		defaultSource: defaultSource,
	}
}

// ProcessFile enriches every valid line of the file at path. A missing file
// is reported through BatchResult.SourceMissing, not as an error.
func (p *Processor) ProcessFile(path string) (*BatchResult, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		klog.InfoS("Batch source not found", "path", path)
		return &BatchResult{SourceMissing: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()

	return p.Process(f, path)
}

// Process enriches JSONL records read from r. name is used for logging only.
// Blank lines are ignored; malformed lines, including lines longer than
// maxLineSize, are skipped with a warning.
func (p *Processor) Process(r io.Reader, name string) (*BatchResult, error) {
	result := &BatchResult{}
	br := bufio.NewReaderSize(r, 64*1024)

	lineNo := 0
	for {
		raw, oversized, err := readLine(br, maxLineSize)
		if err != nil && !errors.Is(err, io.EOF) {
			return result, fmt.Errorf("failed to read batch %s: %w", name, err)
		}
		atEOF := err != nil
		if atEOF && len(raw) == 0 && !oversized {
			break
		}
		lineNo++

		if oversized {
			klog.InfoS("Skipping oversized batch record", "file", name, "line", lineNo, "limit", maxLineSize)
			p.skip(result)
		} else if line := bytes.TrimSpace(raw); len(line) > 0 {
			reading, err := p.parseLine(line)
			if err != nil {
				klog.InfoS("Skipping malformed batch record", "file", name, "line", lineNo, "err", err)
				p.skip(result)
			} else {
				result.Records = append(result.Records, p.extractor.Enrich(reading))
			}
		}

		if atEOF {
			break
		}
	}

	klog.V(2).InfoS("Processed batch", "file", name, "records", len(result.Records), "skipped", result.Skipped)
	return result, nil
}

func (p *Processor) skip(result *BatchResult) {
	result.Skipped++
	metrics.PipelineRecordsSkipped.Inc()
}

// readLine returns the next line including its newline. A line longer than
// limit is consumed up to its newline and reported as oversized with no
// content.
func readLine(br *bufio.Reader, limit int) (line []byte, oversized bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversized {
			content := len(line) + len(bytes.TrimSuffix(chunk, []byte("\n")))
			if content > limit {
				oversized, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, oversized, err
	}
}

func (p *Processor) parseLine(line []byte) (types.Reading, error) {
	var raw rawReading
	if err := json.Unmarshal(line, &raw); err != nil {
		return types.Reading{}, err
	}
	if raw.CO2PPM == nil {
		return types.Reading{}, fmt.Errorf("co2_ppm is required")
	}
	if *raw.CO2PPM < 0 {
		return types.Reading{}, fmt.Errorf("co2_ppm must be non-negative, got %v", *raw.CO2PPM)
	}

	source := ptr.Deref(raw.Source, "")
	if source == "" {
		source = p.defaultSource
	}
	return types.Reading{
		Source:    source,
		Timestamp: ptr.Deref(raw.Timestamp, clock.UnixSeconds(p.clock.Now())),
		CO2PPM:    *raw.CO2PPM,
		Location:  raw.Location,
	}, nil
}
