// Package watch implements the Watch Driver (C8): it observes the task
// file, debounces change bursts, and invokes the reconciliation engine
// once per settled burst, coalescing any events that land mid-run into at
// most one queued follow-up (spec.md §4.8).
package watch

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// RunFunc performs one engine run and reports whether it produced
// non-fatal item errors, for logging purposes only.
type RunFunc func(ctx context.Context, runID string) (itemErrors int, err error)

// Driver runs RunFunc whenever the watched file settles after a change,
// debounced by Debounce (default 400ms per spec.md §4.8).
type Driver struct {
	Path       string // the task file to watch; its containing directory is what fsnotify watches
	Debounce   time.Duration
	MaxBackoff time.Duration
	RunOnce    RunFunc
}

func (d *Driver) debounce() time.Duration {
	if d.Debounce <= 0 {
		return 400 * time.Millisecond
	}
	return d.Debounce
}

func (d *Driver) maxBackoff() time.Duration {
	if d.MaxBackoff <= 0 {
		return 30 * time.Second
	}
	return d.MaxBackoff
}

// Run watches d.Path until ctx is canceled, invoking d.RunOnce on every
// debounced burst of changes. It returns nil on graceful shutdown.
func (d *Driver) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(d.Path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(d.debounce())
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.debounce())
		}
		timerC = timer.C
	}

	running := false
	pending := false
	done := make(chan struct{})
	backoff := time.Duration(0)

	startRun := func() {
		running = true
		runID := uuid.NewString()
		go func() {
			log.Printf("[watch] run %s starting", runID)
			itemErrs, err := d.RunOnce(ctx, runID)
			if err != nil {
				log.Printf("[watch] run %s fatal error: %v", runID, err)
				backoffSleep(ctx, &backoff, d.maxBackoff())
			} else {
				if itemErrs > 0 {
					log.Printf("[watch] run %s completed with %d item error(s)", runID, itemErrs)
				} else {
					log.Printf("[watch] run %s completed", runID)
				}
				backoff = 0
			}
			done <- struct{}{}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.Path) {
				continue
			}
			resetTimer()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[watch] fsnotify error: %v", err)

		case <-timerC:
			timerC = nil
			if running {
				pending = true
				continue
			}
			startRun()

		case <-done:
			running = false
			if pending {
				pending = false
				startRun()
			}
		}
	}
}

// backoffSleep blocks for the current backoff duration (doubling it,
// capped at max), unless ctx is canceled first.
func backoffSleep(ctx context.Context, backoff *time.Duration, max time.Duration) {
	if *backoff <= 0 {
		*backoff = 500 * time.Millisecond
	} else {
		*backoff *= 2
		if *backoff > max {
			*backoff = max
		}
	}
	t := time.NewTimer(*backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
