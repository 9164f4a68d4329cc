package main

import (
	"github.com/joho/godotenv"

	"docchat/internal/cli"
)

func main() {
	// API keys may live in a .env file next to the project.
	_ = godotenv.Load()

	cli.Execute()
}
