package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/logging"
)

func TestKindString(t *testing.T) {
	testCases := []struct {
		kind     Kind
		expected string
	}{
		{KindCreated, "created"},
		{KindModifiedData, "modified"},
		{KindModifiedMetadata, "metadata"},
		{KindRemoved, "removed"},
		{KindOther, "other"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.kind.String())
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindModifiedData, classify(fsnotify.Write))
	assert.Equal(t, KindModifiedMetadata, classify(fsnotify.Chmod))
	assert.Equal(t, KindCreated, classify(fsnotify.Create))
	assert.Equal(t, KindRemoved, classify(fsnotify.Remove))
	assert.Equal(t, KindRemoved, classify(fsnotify.Rename))
	assert.Equal(t, KindCreated, classify(fsnotify.Create|fsnotify.Write))
	assert.Equal(t, KindOther, classify(0))
}

func TestFilterActionable(t *testing.T) {
	files := map[string]bool{
		"/proj/src/Main.elm":               true,
		"/proj/src/Page/Home.elm":          true,
		"/proj/src/elm-stuff/0.19.1/i.dat": true,
		"/proj/src/.Main.elm.swp":          true,
		"/proj/src/index.html":             true,
	}
	filter := Filter{
		Root:           "/proj/src",
		IncludeCreated: true,
		Ignore:         []string{"elm-stuff", ".*.swp"},
		Exclude:        []string{"/proj/src/index.html"},
		IsFile:         func(path string) bool { return files[path] },
	}

	tests := []struct {
		name     string
		event    ChangeEvent
		expected bool
	}{
		{"data write on file", ChangeEvent{"/proj/src/Main.elm", KindModifiedData}, true},
		{"nested data write", ChangeEvent{"/proj/src/Page/Home.elm", KindModifiedData}, true},
		{"metadata only", ChangeEvent{"/proj/src/Main.elm", KindModifiedMetadata}, false},
		{"removal", ChangeEvent{"/proj/src/Main.elm", KindRemoved}, false},
		{"other", ChangeEvent{"/proj/src/Main.elm", KindOther}, false},
		{"created file", ChangeEvent{"/proj/src/Page/Home.elm", KindCreated}, true},
		{"directory event", ChangeEvent{"/proj/src/Page", KindModifiedData}, false},
		{"ignored segment", ChangeEvent{"/proj/src/elm-stuff/0.19.1/i.dat", KindModifiedData}, false},
		{"ignored glob", ChangeEvent{"/proj/src/.Main.elm.swp", KindModifiedData}, false},
		{"artifact write", ChangeEvent{"/proj/src/index.html", KindModifiedData}, false},
		{"artifact created", ChangeEvent{"/proj/src/index.html", KindCreated}, false},
		{"artifact unclean path", ChangeEvent{"/proj/src/Page/../index.html", KindModifiedData}, false},
		{"vanished file", ChangeEvent{"/proj/src/Gone.elm", KindModifiedData}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, filter.Actionable(tt.event))
		})
	}

	t.Run("created ignored when disabled", func(t *testing.T) {
		strict := filter
		strict.IncludeCreated = false
		assert.False(t, strict.Actionable(ChangeEvent{"/proj/src/Main.elm", KindCreated}))
		assert.True(t, strict.Actionable(ChangeEvent{"/proj/src/Main.elm", KindModifiedData}))
	})
}

func TestFilterDefaultIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Main.elm")
	require.NoError(t, os.WriteFile(file, []byte("module Main exposing (..)"), 0o644))

	filter := Filter{Root: dir}
	assert.True(t, filter.Actionable(ChangeEvent{file, KindModifiedData}))
	assert.False(t, filter.Actionable(ChangeEvent{dir, KindModifiedData}))
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDebouncerZeroDelayFiresImmediately(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(0, func() { fired.Add(1) })

	d.Trigger()
	d.Trigger()
	assert.Equal(t, int32(2), fired.Load())
}

func TestDebouncerStop(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

type fakeSource struct {
	events chan ChangeEvent
	errs   chan error
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan ChangeEvent), errs: make(chan error)}
}

func (f *fakeSource) Events() <-chan ChangeEvent { return f.events }
func (f *fakeSource) Errors() <-chan error { return f.errs }
func (f *fakeSource) Close() error { return nil }

func TestTriggers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newFakeSource()
	filter := Filter{IsFile: func(string) bool { return true }}
	triggers, fatal := Triggers(ctx, src, filter, 0, logging.Nop())

	src.events <- ChangeEvent{Path: "/proj/src/Main.elm", Kind: KindModifiedMetadata}
	select {
	case <-triggers:
		t.Fatal("metadata change must not trigger")
	case <-time.After(30 * time.Millisecond):
	}

	src.events <- ChangeEvent{Path: "/proj/src/Main.elm", Kind: KindModifiedData}
	select {
	case <-triggers:
	case <-time.After(time.Second):
		t.Fatal("data change did not trigger")
	}

	src.errs <- errors.NewWatchError(errors.ErrCodeWatchEvent, "overflow", nil, false)
	src.events <- ChangeEvent{Path: "/proj/src/Main.elm", Kind: KindModifiedData}
	select {
	case <-triggers:
	case <-time.After(time.Second):
		t.Fatal("stream stopped after a recoverable error")
	}

	rootGone := errors.ErrWatchRootRemoved("/proj/src")
	src.errs <- rootGone
	select {
	case err := <-fatal:
		assert.Same(t, rootGone, err)
	case <-time.After(time.Second):
		t.Fatal("fatal error not propagated")
	}
}

func TestTriggersMergeUnreceived(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newFakeSource()
	triggers, _ := Triggers(ctx, src, Filter{IsFile: func(string) bool { return true }}, 0, nil)

	for i := 0; i < 5; i++ {
		src.events <- ChangeEvent{Path: "/proj/src/Main.elm", Kind: KindModifiedData}
	}

	<-triggers
	select {
	case <-triggers:
		t.Fatal("unreceived triggers should merge into one")
	case <-time.After(30 * time.Millisecond):
	}
}

func waitForEvent(t *testing.T, fw *FSWatcher, match func(ChangeEvent) bool) ChangeEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-fw.Events():
			if match(ev) {
				return ev
			}
		case err := <-fw.Errors():
			t.Logf("watcher error: %v", err)
		case <-timeout:
			t.Fatal("timed out waiting for filesystem event")
		}
	}
}

func TestFSWatcherReportsDataWrites(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "Page")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	file := filepath.Join(nested, "Home.elm")
	require.NoError(t, os.WriteFile(file, []byte("module Page.Home exposing (..)"), 0o644))

	fw, err := NewFSWatcher(root, logging.Nop())
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.WriteFile(file, []byte("module Page.Home exposing (view)"), 0o644))

	ev := waitForEvent(t, fw, func(ev ChangeEvent) bool { return ev.Kind == KindModifiedData })
	assert.Equal(t, filepath.Clean(file), ev.Path)
}

func TestFSWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	fw, err := NewFSWatcher(root, logging.Nop())
	require.NoError(t, err)
	defer fw.Close()

	dir := filepath.Join(root, "Widgets")
	require.NoError(t, os.Mkdir(dir, 0o755))
	waitForEvent(t, fw, func(ev ChangeEvent) bool { return ev.Path == dir && ev.Kind == KindCreated })

	file := filepath.Join(dir, "Button.elm")
	require.NoError(t, os.WriteFile(file, []byte("module Widgets.Button exposing (..)"), 0o644))
	waitForEvent(t, fw, func(ev ChangeEvent) bool { return ev.Path == file })
}

func TestFSWatcherRootRemovalIsFatal(t *testing.T) {
	root := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.Mkdir(root, 0o755))

	fw, err := NewFSWatcher(root, logging.Nop())
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, os.RemoveAll(root))

	timeout := time.After(3 * time.Second)
	for {
		select {
		case <-fw.Events():
		case err := <-fw.Errors():
			if errors.IsFatal(err) {
				assert.True(t, errors.IsWatchError(err))
				return
			}
		case <-timeout:
			t.Fatal("root removal was not reported")
		}
	}
}

func TestNewFSWatcherRejectsBadRoot(t *testing.T) {
	_, err := NewFSWatcher(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))

	file := filepath.Join(t.TempDir(), "Main.elm")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewFSWatcher(file, nil)
	assert.Error(t, err)
}

func TestFSWatcherCloseIsIdempotent(t *testing.T) {
	fw, err := NewFSWatcher(t.TempDir(), nil)
	require.NoError(t, err)

	assert.NoError(t, fw.Close())
	assert.NoError(t, fw.Close())
}
