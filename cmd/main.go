package main

import (
	"fmt"
	"os"

	"github.com/laureon/slm-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Log.Info("Storage backend ready",
		"sample_page_size", a.Cfg.SamplePageSize,
		"search_page_size", a.Cfg.SearchPageSize,
	)
}
