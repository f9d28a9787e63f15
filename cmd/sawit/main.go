package main

import (
	"fmt"
	"os"

	"github.com/TGlide/sawit-server/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sawit: %v\n", err)
		os.Exit(1)
	}
}
