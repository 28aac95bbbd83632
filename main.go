// Command epd-tuner captures a physical e-paper display with a camera,
// analyzes the rendered layout, and iterates firmware parameter fixes.
package main

import (
	"os"

	"epd-tuner/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
