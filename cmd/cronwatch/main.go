// Command cronwatch runs a command and, when it has something to say,
// emails its output and files a tracking issue.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cronwatch: %v\n", err)
		os.Exit(1)
	}
}
