package main

import (
	"os"

	"horse.fit/beacon/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
