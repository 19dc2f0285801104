package main

import (
	"log"

	"github.com/MrSnakeDoc/clashfun/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ clashfun failed to start: %v", err)
	}
}
