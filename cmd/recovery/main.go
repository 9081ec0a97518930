package main

import (
	"github.com/gmsas95/recovery-tracker/internal/cli"
)

var version = "dev"

func main() {
	cli.Version = version
	cli.Execute()
}
