package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/models"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Command completed
	ExitMalformed = 1 // The scenario or request was malformed
	ExitError     = 2 // Configuration or runtime error
)

func main() {
	os.Exit(exitCode(execute()))
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(os.Stderr, err)

	var malformed *models.MalformedScenarioError
	if errors.As(err, &malformed) {
		return ExitMalformed
	}
	return ExitError
}
