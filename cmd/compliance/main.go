package main

import (
	"errors"
	"fmt"
	"os"

	cerrors "compliance/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ce *cerrors.ComplianceError
		if errors.As(err, &ce) {
			if hint := ce.Hint(); hint != "" {
				fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
			}
		}
		os.Exit(1)
	}
}

// exitError carries a non-zero exit status without an error message.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
