package driver

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions configure the rebuild loop.
type WatchOptions struct {
	// Debounce is how long the loop waits after the last event before
	// rebuilding; bursts from editors collapse into one run.
	Debounce time.Duration
	// Build carries the per-compilation options.
	Build Options
}

// Watcher rebuilds and reruns a surface-tree file whenever it changes.
type Watcher struct {
	w        *fsnotify.Watcher
	path     string
	out      io.Writer
	errW     io.Writer
	opts     WatchOptions
	done     chan struct{}
	finished chan struct{}
}

// NewWatcher starts watching the directory containing path. The file
// itself cannot be watched directly: editors replace it on save, which
// drops inode-level watches.
func NewWatcher(path string, out, errW io.Writer, opts WatchOptions) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		w:        fw,
		path:     path,
		out:      out,
		errW:     errW,
		opts:     opts,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.finished)
	w.runOnce()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.Debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			w.runOnce()
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(w.errW, "watch: %v\n", err)
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// runOnce loads, compiles, and runs the watched file, reporting failures
// without stopping the loop.
func (w *Watcher) runOnce() {
	prog, err := LoadProgram(w.path)
	if err != nil {
		fmt.Fprintf(w.errW, "watch: %v\n", err)
		return
	}
	build, err := Compile(prog, w.opts.Build)
	if err != nil {
		build.Bag.Write(w.errW)
		return
	}
	if build.Bag.Len() > 0 {
		build.Bag.Write(w.errW)
	}
	if err := build.Run(w.out); err != nil {
		fmt.Fprintf(w.errW, "watch: %v\n", err)
	}
}

// Close stops the loop and releases the OS watch.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.w.Close()
	<-w.finished
	return err
}
