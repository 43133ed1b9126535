package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/eapache/queue"
	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/logging"
)

// FSWatcher is a recursive fsnotify-backed Source.
//
// fsnotify delivers on its own goroutine; notifications are copied into an
// unbounded FIFO right away so that a slow consumer never stalls the kernel
// side, and a second goroutine hands them to Events/Errors in order.
type FSWatcher struct {
	root    string
	watcher *fsnotify.Watcher
	logger  logging.Logger

	mutex   sync.Mutex
	ready   *sync.Cond
	pending *queue.Queue // ChangeEvent or error
	closed  bool

	events    chan ChangeEvent
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFSWatcher starts watching root and every directory below it.
func NewFSWatcher(root string, logger logging.Logger) (*FSWatcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewWatchError(errors.ErrCodeWatchFailed, "cannot resolve watch root", err, true).WithPath(root)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, errors.NewWatchError(errors.ErrCodeWatchFailed, "watch root not accessible", err, true).WithPath(absRoot)
	}
	if !info.IsDir() {
		return nil, errors.NewWatchError(errors.ErrCodeWatchFailed, "watch root is not a directory", nil, true).WithPath(absRoot)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewWatchError(errors.ErrCodeWatchFailed, "cannot create filesystem watcher", err, true)
	}

	fw := &FSWatcher{
		root:    absRoot,
		watcher: watcher,
		logger:  logger.WithComponent("watcher"),
		pending: queue.New(),
		events:  make(chan ChangeEvent),
		errors:  make(chan error),
		done:    make(chan struct{}),
	}
	fw.ready = sync.NewCond(&fw.mutex)

	if err := fw.addRecursive(absRoot); err != nil {
		_ = watcher.Close()
		return nil, errors.NewWatchError(errors.ErrCodeWatchFailed, "cannot watch directory tree", err, true).WithPath(absRoot)
	}

	fw.wg.Add(2)
	go fw.watchLoop()
	go fw.deliverLoop()

	return fw, nil
}

// Root returns the absolute watched directory.
func (fw *FSWatcher) Root() string { return fw.root }

// Events implements Source.
func (fw *FSWatcher) Events() <-chan ChangeEvent { return fw.events }

// Errors implements Source.
func (fw *FSWatcher) Errors() <-chan error { return fw.errors }

// Close stops watching. Undelivered notifications are discarded.
func (fw *FSWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		fw.mutex.Lock()
		fw.closed = true
		fw.ready.Broadcast()
		fw.mutex.Unlock()

		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}

// addRecursive adds a watch for dir and each directory below it.
func (fw *FSWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// The tree can change while we walk it; only the root is mandatory.
			if path == dir {
				return err
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if err := fw.watcher.Add(path); err != nil {
			if path == dir {
				return err
			}
			fw.logger.Warn(context.Background(), err, "Skipping directory", "path", path)
		}
		return nil
	})
}

func (fw *FSWatcher) watchLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				fw.push(errors.NewWatchError(errors.ErrCodeWatchFailed, "filesystem event stream closed", nil, true).WithPath(fw.root))
				return
			}
			if fw.handle(event) {
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				fw.push(errors.NewWatchError(errors.ErrCodeWatchFailed, "filesystem error stream closed", nil, true).WithPath(fw.root))
				return
			}
			fw.push(errors.NewWatchError(errors.ErrCodeWatchEvent, "filesystem notification lost", err, false))
		}
	}
}

// handle classifies one fsnotify event and queues it. It returns true when
// the subscription can no longer continue.
func (fw *FSWatcher) handle(event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)
	kind := classify(event.Op)

	if kind == KindRemoved && path == fw.root {
		fw.push(errors.ErrWatchRootRemoved(fw.root))
		return true
	}

	if kind == KindCreated {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := fw.addRecursive(path); err != nil {
				fw.push(errors.NewWatchError(errors.ErrCodeWatchEvent, "cannot watch new directory", err, false).WithPath(path))
			}
		}
	}

	fw.push(ChangeEvent{Path: path, Kind: kind})
	return false
}

func classify(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindRemoved
	case op.Has(fsnotify.Create):
		return KindCreated
	case op.Has(fsnotify.Write):
		return KindModifiedData
	case op.Has(fsnotify.Chmod):
		return KindModifiedMetadata
	default:
		return KindOther
	}
}

func (fw *FSWatcher) push(item interface{}) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()

	if fw.closed {
		return
	}
	fw.pending.Add(item)
	fw.ready.Signal()
}

func (fw *FSWatcher) deliverLoop() {
	defer fw.wg.Done()

	for {
		fw.mutex.Lock()
		for fw.pending.Length() == 0 && !fw.closed {
			fw.ready.Wait()
		}
		if fw.closed {
			fw.mutex.Unlock()
			return
		}
		item := fw.pending.Remove()
		fw.mutex.Unlock()

		switch v := item.(type) {
		case ChangeEvent:
			select {
			case fw.events <- v:
			case <-fw.done:
				return
			}
		case error:
			select {
			case fw.errors <- v:
			case <-fw.done:
				return
			}
		default:
			panic(fmt.Sprintf("watcher: unexpected queued item %T", item))
		}
	}
}
