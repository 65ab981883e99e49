// Command boardsync reconciles a local task catalog onto a hosted project board.
package main

import (
	"fmt"
	"os"

	"github.com/boardsync/boardsync/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
