package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: could not load .env file: %v", err)
	}

	Execute()
}
