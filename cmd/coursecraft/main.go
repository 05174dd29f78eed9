package main

import (
	"fmt"
	"os"

	"github.com/riverglen/coursecraft/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	addr := a.Cfg.HTTPAddr
	fmt.Printf("coursecraft listening on %s\n", addr)
	if err := a.Run(addr); err != nil {
		a.Log.Warn("server failed", "error", err)
	}
}
