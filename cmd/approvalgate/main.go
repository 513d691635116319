package main

import (
	"os"

	"github.com/solatis/approvalgate/cmd/approvalgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
