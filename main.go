package main

import (
	"fmt"
	"os"

	"github.com/RkayG/Cxperia-sub002/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "admission service: %v\n", err)
		os.Exit(1)
	}
}
