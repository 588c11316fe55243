package main

import (
	"os"

	"github.com/seanchatmangpt/cleanroom/internal/cli"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
