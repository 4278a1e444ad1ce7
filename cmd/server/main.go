package main // Entry point package

import (
	"os"

	"github.com/txxdx/devcamper-api/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
