package publish

import (
	"fmt"

	"github.com/alessio/shellescape"
)

// StepName identifies one of the three publish steps.
type StepName string

const (
	StepBuild StepName = "build"
	StepTag   StepName = "tag"
	StepPush  StepName = "push"
)

// Step is a single docker invocation. Command holds the full argv, binary first.
type Step struct {
	Name    StepName
	Command []string
}

// String renders the step as a shell command line.
func (s Step) String() string {
	return Render(s.Command)
}

// Render joins argv into a shell-style command line, single-quoting arguments that need it.
func Render(argv []string) string {
	return shellescape.QuoteCommand(argv)
}

// StepError is returned when a docker invocation fails. ExitCode is the exit status of the docker
// process, or 1 when the process never started.
type StepError struct {
	Step     StepName
	Command  string
	ExitCode int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("docker %s failed (exit %d): %v", e.Step, e.ExitCode, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
