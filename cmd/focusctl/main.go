package main

import (
	"os"

	"github.com/tiagofur/ordo-todo-sub018/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
