package watcher

import (
	"os"
	"path/filepath"
	"strings"
)

// Filter decides which change events should trigger a rebuild.
type Filter struct {
	// Root is the watched directory; ignore patterns match path segments below it.
	Root string
	// IncludeCreated makes file creation actionable in addition to data writes.
	// Editors that save by writing a new file and renaming it need this.
	IncludeCreated bool
	// Ignore holds filepath.Match patterns checked against each path segment.
	Ignore []string
	// Exclude holds files the build itself writes, such as the artifact.
	// Changes to them never trigger, or every build would schedule the next.
	Exclude []string
	// IsFile reports whether path is an existing regular file. Defaults to os.Stat.
	IsFile func(path string) bool
}

// Actionable reports whether the event should produce a rebuild trigger.
// Metadata-only changes, removals and directory events never do.
func (f Filter) Actionable(event ChangeEvent) bool {
	switch event.Kind {
	case KindModifiedData:
	case KindCreated:
		if !f.IncludeCreated {
			return false
		}
	default:
		return false
	}

	if f.ignored(event.Path) || f.excluded(event.Path) {
		return false
	}

	isFile := f.IsFile
	if isFile == nil {
		isFile = regularFile
	}

	return isFile(event.Path)
}

func (f Filter) ignored(path string) bool {
	if len(f.Ignore) == 0 {
		return false
	}

	rel := path
	if f.Root != "" {
		if r, err := filepath.Rel(f.Root, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}

	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, pattern := range f.Ignore {
			if matched, _ := filepath.Match(pattern, segment); matched {
				return true
			}
		}
	}

	return false
}

func (f Filter) excluded(path string) bool {
	path = filepath.Clean(path)
	for _, exclude := range f.Exclude {
		if filepath.Clean(exclude) == path {
			return true
		}
	}
	return false
}

func regularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
