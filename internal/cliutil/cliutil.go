// Package cliutil carries the exit-code contract the CLI commands report
// through, generalized from the teacher's foundry.ExitX naming.
package cliutil

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Exit codes. 0 is success; everything else is a distinct failure class so
// scripts invoking gorunner can branch on cause without parsing log text.
const (
	ExitOK                         = 0
	ExitInvalidArgument            = 1
	ExitConfigInvalid              = 2
	ExitDependencyError            = 3
	ExitExecutionFailed            = 4
	ExitExternalServiceUnavailable = 5
)

// ExitWithCode logs msg and err at error level, then terminates the process
// with code. Callers that need to unwind (e.g. to run deferred cleanup in
// tests) should call it through a package variable they can stub; production
// call sites invoke it directly, matching the teacher's doctor.go usage.
var osExit = os.Exit

func ExitWithCode(logger *zap.Logger, code int, msg string, err error) {
	if err != nil {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Error(msg)
	}
	osExit(code)
}

// Fail is a convenience for the common case: no structured logger
// available yet (e.g. before observability.Init runs), print to stderr and
// exit.
func Fail(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	osExit(code)
}
