package main

import (
	"os"

	"github.com/ringlink/ringlink/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
