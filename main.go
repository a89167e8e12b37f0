package main

import (
	"os"

	"github.com/easydom/hellosure/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
