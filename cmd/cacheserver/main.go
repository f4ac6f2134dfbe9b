// Command cacheserver is a demo harness around the cachecore cache engine.
package main

import (
	"fmt"
	"os"

	"github.com/vitaliisemenov/cachecore/cmd/cacheserver/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
