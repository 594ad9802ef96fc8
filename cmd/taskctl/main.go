// Command taskctl inspects and repairs task state, feeds the worker queue and
// checks caption endpoint discovery.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
