package main

import (
	"github.com/BioHazard786/roomrelay/internal/cli"
	"github.com/BioHazard786/roomrelay/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cli.Execute()
}
