package fsio

import (
	"os"
)

// Hooks for filesystem operations
// used for testing
var (
	Open     = os.Open
	OpenFile = os.OpenFile
	Create   = os.Create
	ReadDir  = os.ReadDir
	Stat     = os.Stat
	Lstat    = os.Lstat
	Remove   = os.Remove
)
