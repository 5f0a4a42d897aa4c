//go:build unix

package main

import (
	"os/signal"
	"syscall"
)

// ignoreSigpipe masks SIGPIPE so a broken pipe surfaces as a synchronous
// write error instead of killing the process.
func ignoreSigpipe() {
	signal.Ignore(syscall.SIGPIPE)
}
