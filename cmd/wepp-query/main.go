// Package main is the entry point for the wepp-query CLI.
package main

import (
	"os"

	"github.com/weppcloud/queryengine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
