package main

import (
	"fmt"
	"os"

	"github.com/Brownie44l1/xray-detect/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand(cli.Options{})
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
