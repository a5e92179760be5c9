// Command vocabdrill schedules vocabulary drills. It runs as an MCP server
// on stdio or as a one-shot CLI over the same data file.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
