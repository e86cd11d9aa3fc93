package main

import (
	"github.com/class-verify/cmd/cli/cmd"
)

func main() {
	cmd.Execute()
}
