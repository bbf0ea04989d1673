//go:build windows

package mcp

import (
	"os"
	"os/signal"
)

// notifySignals registers shutdown signals. Windows only delivers
// os.Interrupt.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
