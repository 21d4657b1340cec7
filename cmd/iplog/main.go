package main

import (
	"os"

	"github.com/charmbracelet/log"

	"iplog/internal/app"
)

func main() {
	if err := app.Run(os.Args[1:]); err != nil {
		log.Fatal("application terminated", "error", err)
	}
}
