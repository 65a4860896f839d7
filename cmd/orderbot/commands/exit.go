package commands

import (
	"errors"

	"github.com/orderbot/orderbot-sync/internal/publish"
	"github.com/urfave/cli/v2"
)

// ExitCode maps err to a process exit status. A failed docker step exits with docker's status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var stepErr *publish.StepError
	if errors.As(err, &stepErr) {
		return stepErr.ExitCode
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) && exitCoder.ExitCode() != 0 {
		return exitCoder.ExitCode()
	}

	return 1
}
