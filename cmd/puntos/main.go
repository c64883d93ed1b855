package main

import (
	"os"

	"mannypuntos/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
