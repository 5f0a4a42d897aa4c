// Package cli parses the command line: GNU-style long options, grouped short
// options, the digit options -0..-9 and at most one PATH argument.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Genivia/ugrep-indexer/internal/config"
)

const version = "1.0.0"

// Parse builds the Config from argv (without the program name). Help and
// version exit directly; a usage error is returned for main to report.
func Parse(args []string) (*config.Config, error) {
	cfg := config.Default()
	options := true
	havePath := false

	for _, arg := range args {
		if options && len(arg) > 1 && arg[0] == '-' {
			if arg == "--" {
				options = false
				continue
			}
			if strings.HasPrefix(arg, "--") {
				if err := parseLong(cfg, arg[2:]); err != nil {
					return nil, err
				}
				continue
			}
			if err := parseShort(cfg, arg[1:]); err != nil {
				return nil, err
			}
			continue
		}

		if havePath {
			return nil, fmt.Errorf("argument PATH already specified as %s", cfg.Path)
		}
		cfg.Path = arg
		havePath = true
	}

	cfg.Normalize()
	return cfg, nil
}

func parseLong(cfg *config.Config, opt string) error {
	name, value, hasValue := strings.Cut(opt, "=")

	switch name {
	case "accuracy":
		if !hasValue || len(value) != 1 || value[0] < '0' || value[0] > '9' {
			return fmt.Errorf("invalid option --%s", opt)
		}
		cfg.Accuracy = int(value[0] - '0')
	case "check":
		cfg.Check = true
	case "decompress":
		cfg.Decompress = true
	case "delete":
		cfg.Delete = true
	case "dereference-files":
		cfg.DereferenceFiles = true
	case "force":
		cfg.Force = true
	case "help":
		helpExit()
	case "hidden":
		cfg.Hidden = true
	case "ignore-binary":
		cfg.IgnoreBinary = true
	case "ignore-files":
		if hasValue {
			cfg.IgnoreFiles = append(cfg.IgnoreFiles, value)
		} else {
			cfg.IgnoreFiles = append(cfg.IgnoreFiles, config.DefaultIgnoreFile)
		}
	case "no-messages":
		cfg.NoMessages = true
	case "quiet", "silent":
		cfg.Quiet = true
		cfg.NoMessages = true
	case "verbose":
		cfg.Verbose = true
	case "version":
		versionExit()
	case "zmax":
		n, err := strconv.Atoi(value)
		if !hasValue || err != nil || n < config.MinZmax || n > config.MaxZmax {
			return fmt.Errorf("invalid option --%s", opt)
		}
		cfg.Zmax = n
	default:
		return fmt.Errorf("invalid option --%s", opt)
	}

	return nil
}

func parseShort(cfg *config.Config, group string) error {
	for i := 0; i < len(group); i++ {
		c := group[i]
		switch {
		case c >= '0' && c <= '9':
			cfg.Accuracy = int(c - '0')
		case c == '.':
			cfg.Hidden = true
		case c == 'c':
			cfg.Check = true
		case c == 'd':
			cfg.Delete = true
		case c == 'f':
			cfg.Force = true
		case c == 'I':
			cfg.IgnoreBinary = true
		case c == 'q':
			cfg.Quiet = true
			cfg.NoMessages = true
		case c == 'S':
			cfg.DereferenceFiles = true
		case c == 's':
			cfg.NoMessages = true
		case c == 'V':
			versionExit()
		case c == 'v':
			cfg.Verbose = true
		case c == 'X':
			if i+1 < len(group) && group[i+1] == '=' {
				cfg.IgnoreFiles = append(cfg.IgnoreFiles, group[i+2:])
				i = len(group)
			} else {
				cfg.IgnoreFiles = append(cfg.IgnoreFiles, config.DefaultIgnoreFile)
			}
		case c == 'z':
			cfg.Decompress = true
		case c == '?':
			helpExit()
		default:
			return fmt.Errorf("invalid option -%c", c)
		}
	}
	return nil
}

// Usage prints a usage error with the help text to stderr.
func Usage(err error) {
	fmt.Fprintf(os.Stderr, "ugrep-indexer: %v\n", err)
	fmt.Fprint(os.Stderr, helpText)
}

func helpExit() {
	fmt.Print(helpText)
	printVersion()
	os.Exit(0)
}

func versionExit() {
	printVersion()
	os.Exit(0)
}

func printVersion() {
	fmt.Printf("ugrep-indexer %s\n", version)
}

const helpText = `
Usage:

ugrep-indexer [-0|...|-9] [-.] [-c|-d|-f] [-I] [-q] [-S] [-s] [-X] [-z] [PATH]

    PATH    Optional pathname to the root of the directory tree to index.

    -0, -1, -2, -3, ..., -9, --accuracy=DIGIT
            Specifies indexing accuracy.  A low accuracy reduces the indexing
            storage overhead at the cost of a higher rate of false positive
            pattern matches (more noise).  A high accuracy reduces the rate of
            false positive regex pattern matches (less noise) at the cost of an
            increased indexing storage overhead.  An accuracy between 3 and 7
            is recommended.  The default accuracy is 5.
    -., --hidden
            Index hidden files and directories.
    -?, --help
            Display a help message and exit.
    -c, --check
            Recursively check and report indexes without reindexing files.
    -d, --delete
            Recursively remove index files.
    -f, --force
            Force reindexing of files, even those that are already indexed.
    -I, --ignore-binary
            Do not index binary files.
    -q, --quiet, --silent
            Quiet mode: do not display indexing statistics.
    -S, --dereference-files
            Follow symbolic links to files.  Symbolic links to directories are
            never followed.
    -s, --no-messages
            Silent mode: nonexistent and unreadable files are ignored, i.e.
            their error messages and warnings are suppressed.
    -V, --version
            Display version and exit.
    -v, --verbose
            Produce verbose output.
    -X, --ignore-files[=FILE]
            Do not index files and directories matching the globs in a FILE
            encountered during indexing.  The default FILE is '.gitignore'.
    -z, --decompress
            Index the contents of compressed files and archives.
    --zmax=NUM
            With -z, index the contents of compressed files and archives that
            are nested up to NUM levels deep, up to 99.  The default is 1.
`
