package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
)

// ScanStats summarizes one pass over the input directory
type ScanStats struct {
	Files    int
	Appended int
	Skipped  int
}

// Watcher moves batch files from the input directory into the output log.
// Exactly one Watcher may own a given output log.
type Watcher struct {
	cfg       config.PipelineConfig
	processor *Processor
	log       *OutputLog
	remove    func(path string) error
}

// NewWatcher creates the input directory if needed. Failure here is a
// startup error.
func NewWatcher(cfg config.PipelineConfig, processor *Processor, log *OutputLog) (*Watcher, error) {
	if _, err := filepath.Match(cfg.FilePattern, ""); err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", cfg.FilePattern, err)
	}
	if err := os.MkdirAll(cfg.InputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create input directory: %w", err)
	}
	return &Watcher{
		cfg:       cfg,
		processor: processor,
		log:       log,
		remove:    os.Remove,
	}, nil
}

// Run scans until ctx is cancelled, waiting ScanInterval between scans.
// When WatchEvents is set, filesystem notifications cut the wait short.
// Per-file failures are logged and never end the loop.
func (w *Watcher) Run(ctx context.Context) error {
	klog.InfoS("Starting pipeline watcher",
		"inputDir", w.cfg.InputDir,
		"pattern", w.cfg.FilePattern,
		"outputFile", w.log.Path(),
		"interval", w.cfg.ScanInterval)

	var wake <-chan struct{}
	if w.cfg.WatchEvents {
		ch, stop, err := w.notifications(ctx)
		if err != nil {
			klog.ErrorS(err, "Filesystem notifications unavailable, polling only", "inputDir", w.cfg.InputDir)
		} else {
			defer stop()
			wake = ch
		}
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			klog.InfoS("Stopping pipeline watcher")
			return nil
		case <-timer.C:
		case <-wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		w.Scan(ctx)
		timer.Reset(w.cfg.ScanInterval)
	}
}

// Scan processes every matching file currently in the input directory, in
// enumeration order.
func (w *Watcher) Scan(ctx context.Context) ScanStats {
	start := time.Now()
	defer func() {
		metrics.PipelineScanDuration.Observe(time.Since(start).Seconds())
	}()

	var stats ScanStats
	entries, err := os.ReadDir(w.cfg.InputDir)
	if err != nil {
		klog.ErrorS(err, "Failed to list input directory", "inputDir", w.cfg.InputDir)
		return stats
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(w.cfg.FilePattern, entry.Name()); !ok {
			continue
		}
		stats.Files++
		appended, skipped := w.processFile(filepath.Join(w.cfg.InputDir, entry.Name()))
		stats.Appended += appended
		stats.Skipped += skipped
	}

	if stats.Files > 0 {
		klog.V(2).InfoS("Pipeline scan complete", "files", stats.Files, "appended", stats.Appended, "skipped", stats.Skipped)
	}
	return stats
}

func (w *Watcher) processFile(path string) (appended, skipped int) {
	result, err := w.processor.ProcessFile(path)
	if err != nil {
		klog.ErrorS(err, "Failed to process batch file", "path", path)
		metrics.PipelineFilesProcessed.WithLabelValues("read_error").Inc()
		return 0, 0
	}
	if result.SourceMissing {
		metrics.PipelineFilesProcessed.WithLabelValues("missing").Inc()
		return 0, 0
	}

	if len(result.Records) > 0 {
		if err := w.log.Append(result.Records); err != nil {
			// Leave the file in place so the next scan retries it.
			klog.ErrorS(err, "Failed to append batch to output log", "path", path)
			metrics.PipelineFilesProcessed.WithLabelValues("append_error").Inc()
			return 0, result.Skipped
		}
		metrics.PipelineRecordsAppended.Add(float64(len(result.Records)))
		metrics.ReadingsIngested.WithLabelValues("pipeline").Add(float64(len(result.Records)))
		for _, rec := range result.Records {
			metrics.ReadingsBySeverity.WithLabelValues(string(rec.Severity)).Inc()
		}
		metrics.PipelineFilesProcessed.WithLabelValues("appended").Inc()
	} else {
		metrics.PipelineFilesProcessed.WithLabelValues("empty").Inc()
	}

	if err := w.remove(path); err != nil {
		klog.ErrorS(err, "Failed to delete consumed batch file, it may be reprocessed", "path", path)
		metrics.PipelineDeleteFailures.Inc()
	}
	return len(result.Records), result.Skipped
}

// notifications forwards create, write and rename events in the input
// directory as coalesced wake-ups.
func (w *Watcher) notifications(ctx context.Context) (<-chan struct{}, func(), error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := fw.Add(w.cfg.InputDir); err != nil {
		fw.Close()
		return nil, nil, err
	}

	wake := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if ok, _ := filepath.Match(w.cfg.FilePattern, filepath.Base(ev.Name)); !ok {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				klog.V(2).InfoS("Filesystem watcher error", "err", err)
			}
		}
	}()

	return wake, func() { fw.Close() }, nil
}
