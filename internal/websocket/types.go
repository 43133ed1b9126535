// Package websocket implements the reload rendezvous: browser tabs register
// as waiters over a websocket connection and each successful build releases
// every waiter registered before it.
package websocket

import (
	"errors"
	"time"
)

// Wire protocol messages and limits.
const (
	// ReloadMessage is the only message the server ever sends.
	ReloadMessage = "reload"
	// ReadyMessage is what the client script sends; any payload is accepted.
	ReadyMessage = "ready"

	readLimit    = 512
	readyTimeout = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// ErrHubClosed is returned by Waiter.Wait after the hub shut down without
// fulfilling the waiter.
var ErrHubClosed = errors.New("reload hub closed")

// Signal is the reload notice delivered to a waiter.
type Signal struct {
	// Cycle is the NotifyAll call that produced the signal, starting at 1.
	Cycle uint64
}
