package main

import (
	"fmt"
	"os"

	"prepdeck/internal/cli"

	// Protocols register themselves with the default registry.
	_ "prepdeck/internal/protocols/hifiplex"
	_ "prepdeck/internal/protocols/hyperplus"
	_ "prepdeck/internal/protocols/lsk109"
	_ "prepdeck/internal/protocols/qiaseq"
	_ "prepdeck/internal/protocols/tenxgex"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
