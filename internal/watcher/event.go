// Package watcher turns raw filesystem notifications into rebuild triggers.
//
// A Source yields classified ChangeEvents for one directory tree. A Filter
// decides which of them are actionable, and Triggers combines both with an
// optional Debouncer into a stream of payload-free rebuild triggers.
package watcher

// Kind classifies a filesystem change.
type Kind int

const (
	KindOther Kind = iota
	KindCreated
	KindModifiedData
	KindModifiedMetadata
	KindRemoved
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModifiedData:
		return "modified"
	case KindModifiedMetadata:
		return "metadata"
	case KindRemoved:
		return "removed"
	default:
		return "other"
	}
}

// ChangeEvent is one classified change under the watched root.
type ChangeEvent struct {
	Path string
	Kind Kind
}

// Source is a stream of change events for one watched tree.
//
// A non-recoverable error on Errors means the subscription itself is gone;
// recoverable errors describe a single lost notification.
type Source interface {
	Events() <-chan ChangeEvent
	Errors() <-chan error
	Close() error
}
