// Package main is the entry point for the incidentpulse service.
package main

import (
	"github.com/bissquit/incident-pulse/internal/cli"
)

func main() {
	cli.Execute()
}
