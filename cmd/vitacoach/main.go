package main

import (
	"fmt"
	"os"

	"github.com/MORTAKI0/VitaCoach/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
