package indexer

import (
	"fmt"
	"os"

	"github.com/Genivia/ugrep-indexer/internal/config"
)

// Report prints messages under the suppression policy: no-messages silences
// warnings and errors, quiet additionally silences progress and the summary.
type Report struct {
	noMessages bool
	quiet      bool
	verbose    bool
}

func NewReport(cfg *config.Config) *Report {
	return &Report{
		noMessages: cfg.NoMessages,
		quiet:      cfg.Quiet,
		verbose:    cfg.Verbose,
	}
}

// Error reports a failure that skips work but never stops the traversal.
func (r *Report) Error(message, arg string, err error) {
	if r.noMessages {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ugrep-indexer: error: %s %s: %v\n", message, arg, err)
	} else {
		fmt.Fprintf(os.Stderr, "ugrep-indexer: error: %s %s\n", message, arg)
	}
}

func (r *Report) Warning(message, arg string) {
	if r.noMessages {
		return
	}
	fmt.Fprintf(os.Stderr, "ugrep-indexer: warning: %s %s\n", message, arg)
}

// VerboseFile prints the per-file indexing line: classification mark, size,
// rounded noise, content digest and pathname.
func (r *Report) VerboseFile(mark byte, size int64, noise float64, digest [16]byte, pathname string) {
	if !r.verbose {
		return
	}
	fmt.Printf("%c%12d%3d%% %x %s\n", mark, size, roundPercent(noise), digest, pathname)
}

func roundPercent(x float64) int {
	return int(100*x + 0.5)
}
