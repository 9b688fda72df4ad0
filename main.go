// Package main is the entry point for the aegis SIEM.
package main

import (
	"fmt"
	"os"

	"aegis/bootstrap"
	"aegis/cmd"
)

// main dispatches to the rules CLI or runs the server.
func main() {
	if len(os.Args) > 1 && os.Args[1] == "rules" {
		// Strip "rules" from os.Args since the command already knows it is
		// the rules command.
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		rulesCmd := cmd.NewRulesCmd()
		if err := rulesCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := bootstrap.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
