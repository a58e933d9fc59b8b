package main

import (
	"errors"

	"github.com/jlebar/llvm-repo-tools/internal/config"
	"github.com/jlebar/llvm-repo-tools/internal/correspond"
	"github.com/jlebar/llvm-repo-tools/internal/rewritemap"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (usage, git failure, I/O)
	ExitConfigError = 2 // Configuration error (bad file, unknown upstream branch)
	ExitDataError   = 3 // Data error (ambiguous or missing correspondence, malformed map entry)
)

// errUsage is returned after the usage line has already been printed.
var errUsage = errors.New("usage")

// configError marks failures to assemble a usable configuration.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// exitCodeFor maps an error returned by a command to the process exit code.
func exitCodeFor(err error) int {
	var cfgErr *configError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &cfgErr), errors.Is(err, config.ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, correspond.ErrAmbiguousCorrespondence),
		errors.Is(err, correspond.ErrMissingCorrespondence),
		errors.Is(err, rewritemap.ErrMalformedEntry):
		return ExitDataError
	default:
		return ExitError
	}
}
