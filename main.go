// main.go
package main

import (
	"fmt"
	"os"

	"github.com/bctw/collector/cli"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "collector:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func run(args []string) error {
	cmd := cli.NewRootCmd(version)
	cmd.SetArgs(args)
	return cmd.Execute()
}
