package main

import (
	"os"

	"github.com/calfsync/calf-scraper/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
