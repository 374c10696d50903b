package main

import (
	"os"
)

func main() {
	if err := newRootCommand(defaultOpener).Execute(); err != nil {
		os.Exit(1)
	}
}
