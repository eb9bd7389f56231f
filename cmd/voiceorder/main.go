// Package main provides the voiceorder CLI.
//
// Usage:
//
//	voiceorder <command> [flags]
//
// Commands:
//
//	serve       - Run the HTTP session API, gRPC health and metrics servers
//	console     - Order by typing utterances against the simulated recognizer
//	resolve     - Resolve a transcript to menu items
//	stream-wav  - Stream a WAV file to a running server session
//
// Configuration is read from environment variables (see internal/config).
package main

import (
	"fmt"
	"os"

	"voice-ordering-service/cmd/voiceorder/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
