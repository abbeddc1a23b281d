// Command scigp fits and queries Gaussian process regression models from
// CSV data.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "scigp:", err)
		os.Exit(1)
	}
}
