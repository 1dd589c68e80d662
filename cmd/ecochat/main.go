// ecochat runs the protocol-routed chat server.
package main

import (
	"fmt"
	"os"
)

// Set via ldflags.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
