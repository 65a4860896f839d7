package publish

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const defaultBinary = "docker"

// Result summarizes a completed publish.
type Result struct {
	LocalReference  string
	RemoteReference string
	Steps           []StepName
	Duration        time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBinary overrides the docker executable.
func WithBinary(binary string) Option {
	return func(p *Publisher) {
		if binary != "" {
			p.binary = binary
		}
	}
}

// WithContextDir overrides the build context directory (default ".").
func WithContextDir(dir string) Option {
	return func(p *Publisher) {
		if dir != "" {
			p.contextDir = dir
		}
	}
}

// Publisher runs build, tag and push in order.
type Publisher struct {
	runner     Runner
	binary     string
	contextDir string
}

// New returns a Publisher that executes steps through runner.
func New(runner Runner, opts ...Option) *Publisher {
	p := &Publisher{
		runner:     runner,
		binary:     defaultBinary,
		contextDir: ".",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns the three steps for repo. repo is substituted verbatim.
func (p *Publisher) Plan(repo string) []Step {
	remote := RemoteReference(repo)
	return []Step{
		{
			Name:    StepBuild,
			Command: []string{p.binary, "build", "--platform", Platform, "-t", ImageName, p.contextDir},
		},
		{
			Name:    StepTag,
			Command: []string{p.binary, "tag", LocalReference(), remote},
		},
		{
			Name:    StepPush,
			Command: []string{p.binary, "push", remote},
		},
	}
}

// Run executes the plan for repo, stopping at the first failing step.
func (p *Publisher) Run(ctx context.Context, repo string) (Result, error) {
	logger := zerolog.Ctx(ctx)
	started := time.Now()

	if Unqualified(repo) {
		logger.Warn().
			Str("env_var", RegistryEnvVar).
			Str("remote_reference", RemoteReference(repo)).
			Msgf("%s is empty; tag and push targets have no registry and will likely be rejected", RegistryEnvVar)
	}

	result := Result{
		LocalReference:  LocalReference(),
		RemoteReference: RemoteReference(repo),
	}

	for _, step := range p.Plan(repo) {
		command := step.String()
		logger.Info().
			Str("step", string(step.Name)).
			Str("command", command).
			Msg("running publish step")

		if err := p.runner.Run(ctx, step.Command); err != nil {
			result.Duration = time.Since(started)
			return result, &StepError{
				Step:     step.Name,
				Command:  command,
				ExitCode: exitCode(err),
				Err:      err,
			}
		}

		result.Steps = append(result.Steps, step.Name)
	}

	result.Duration = time.Since(started)
	logger.Info().
		Str("remote_reference", result.RemoteReference).
		Dur("duration", result.Duration).
		Msg("image published")

	return result, nil
}
