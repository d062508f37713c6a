// Command wisp runs the hook pipeline for assistant lifecycle events.
package main

import (
	"os"

	"github.com/wisp/wisp/pkg/cli"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
