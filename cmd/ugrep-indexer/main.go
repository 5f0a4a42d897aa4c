package main

import (
	"os"

	"github.com/Genivia/ugrep-indexer/internal/cli"
	"github.com/Genivia/ugrep-indexer/internal/indexer"
)

func main() {
	cfg, err := cli.Parse(os.Args[1:])
	if err != nil {
		cli.Usage(err)
		os.Exit(2)
	}

	ignoreSigpipe()

	os.Exit(indexer.New(cfg).Run())
}
