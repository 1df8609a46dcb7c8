package main

import (
	"os"

	"github.com/JonMunkholm/VotersList/cmd/voterlist/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
