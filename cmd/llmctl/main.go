package main

import (
	"os"

	"github.com/upb/llm-router/cli"
)

func main() {
	os.Exit(cli.Run())
}
