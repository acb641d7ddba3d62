package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/opensquawk/simbridge/cmd/squawk-bridge/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
