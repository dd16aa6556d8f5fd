package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/nc6/cvmfs/pkg/core/status"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/process"
)

// Exit codes
const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitUsageMessage = 3
)

var (
	// globals used to patch over calls to os.Exit() during test
	osExit = os.Exit

	// infoLogger wraps informative messages to os.Stdout without cluttering expected output in tests.
	infoLogger = log.New(os.Stdout, "", 0)

	// errLogger reports failures to os.Stderr
	errLogger = log.New(os.Stderr, "", 0)
)

// wrapFatalln reports a failed command and exits with the code matching the error.
//
// A declined confirmation is not a failure.
func wrapFatalln(msg string, err error) {
	switch {
	case err == nil:
		errLogger.Println(msg)
		osExit(exitFailure)
	case errors.Is(err, status.ErrConfirmationDeclined):
		infoLogger.Println("Aborted.")
		osExit(exitOK)
	case errors.Is(err, status.ErrUsage):
		errLogger.Printf("%v", fmt.Errorf("%s: %w", msg, err))
		osExit(exitUsageMessage)
	default:
		errLogger.Printf("%v", fmt.Errorf("%s: %w", msg, err))
		var cmdErr *process.CommandError
		if errors.As(err, &cmdErr) {
			errLogger.Println("Failed command:", process.CommandLine(cmdErr.Command))
			if out := strings.TrimSpace(cmdErr.Output); out != "" {
				errLogger.Println(out)
			}
		}
		osExit(exitFailure)
	}
}

func wrapUsagef(format string, args ...interface{}) {
	errLogger.Printf(format, args...)
	osExit(exitUsageMessage)
}
