// Command dvfs runs and administers a DittoVFS server.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/dittovfs/cmd/dvfs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
