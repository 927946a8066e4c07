// Command shimctl runs pages against the widget shim headlessly.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/embedshim/cmd/shimctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
