package main

import (
	"os"

	"github.com/GriffinCanCode/chanbridge/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
