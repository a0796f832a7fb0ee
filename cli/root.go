// Package cli implements llmctl, the operator command line for the router.
//
// Every subcommand builds the same app.Dependencies graph the HTTP server
// uses, runs one inference operation and renders it as a table or as JSON.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/services"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitNoAnswer     = 1 // every provider failed
	ExitUsageError   = 2
	ExitRuntimeError = 3
)

// DependencyFactory builds the service graph for one command invocation
type DependencyFactory func(ctx context.Context, verbose bool) (*app.Dependencies, error)

// CLI holds the command tree state for one execution
type CLI struct {
	newDeps DependencyFactory

	jsonOut bool
	verbose bool
	timeout time.Duration
	useCase string

	exitCode int
}

// New creates a CLI that builds dependencies with newDeps
func New(newDeps DependencyFactory) *CLI {
	return &CLI{newDeps: newDeps}
}

// Run executes llmctl with the process arguments and returns an exit code
func Run() int {
	return New(DefaultDependencies).Execute(os.Args[1:], os.Stdout, os.Stderr)
}

// DefaultDependencies loads configuration from the environment. Logging
// goes to stderr and is limited to errors unless verbose is set.
func DefaultDependencies(ctx context.Context, verbose bool) (*app.Dependencies, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := "error"
	if verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(level, "console")
	if err != nil {
		return nil, err
	}
	return app.NewDependencies(ctx, cfg, logger)
}

// Execute runs the command tree with args and returns an exit code
func (c *CLI) Execute(args []string, stdout, stderr io.Writer) int {
	c.exitCode = ExitSuccess

	root := c.Command()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "llmctl: %s\n", errorMessage(err))
		return exitCodeFor(err)
	}
	return c.exitCode
}

// Command builds the root cobra command
func (c *CLI) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "llmctl",
		Short:         "Query and compare LLM providers",
		Long:          "llmctl sends prompts through the multi-provider router: the best provider for a use case, or every provider side by side.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&c.jsonOut, "json", false, "print results as JSON")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log dispatch details to stderr")
	flags.DurationVar(&c.timeout, "timeout", 0, "overall deadline for the command (0 disables)")

	root.AddCommand(c.askCommand())
	root.AddCommand(c.compareCommand())
	root.AddCommand(c.providersCommand())
	root.AddCommand(c.explainCommand())
	return root
}

// withDeps builds dependencies, runs fn and releases them
func (c *CLI) withDeps(cmd *cobra.Command, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	deps, err := c.newDeps(ctx, c.verbose)
	if err != nil {
		return &runtimeError{fmt.Errorf("initializing: %w", err)}
	}
	defer func() {
		if err := deps.Close(); err != nil {
			deps.Logger.Warn("error closing dependencies", zap.Error(err))
		}
	}()

	return fn(ctx, deps)
}

// runtimeError marks failures that are not the caller's fault
type runtimeError struct{ err error }

func (e *runtimeError) Error() string { return e.err.Error() }
func (e *runtimeError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var rt *runtimeError
	switch {
	case errors.As(err, &rt):
		return ExitRuntimeError
	case services.IsUnavailableError(err), services.IsTimeoutError(err):
		return ExitRuntimeError
	default:
		// validation, not found and cobra's own argument errors
		return ExitUsageError
	}
}

func errorMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return err.Error()
}

func promptFrom(args []string) string {
	return strings.Join(args, " ")
}
