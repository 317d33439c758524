package main

import (
	"fmt"
	"os"

	"github.com/hammelm/mempeek/cmd/mempeek"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
