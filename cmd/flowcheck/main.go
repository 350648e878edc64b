// flowcheck runs the browser and API scenario suites.
//
// Usage:
//
//	flowcheck run [group...]     Run scenario groups (all by default)
//	flowcheck run --list         List the available groups
//	flowcheck file <path>        Run declarative scenario files
//	flowcheck version            Print the version
package main

import (
	"errors"
	"fmt"
	"os"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		if !errors.Is(err, errScenariosFailed) {
			fmt.Fprintf(os.Stderr, "flowcheck: %v\n", err)
		}
		os.Exit(1)
	}
}
