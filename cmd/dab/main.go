// Package main is the entry point for the data API builder server.
package main

import (
	"os"

	"github.com/weiplanet/data-api-builder/cmd/dab/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
