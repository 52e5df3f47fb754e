package main

import (
	"fmt"
	"os"

	"botscript.ai/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "botrun:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
