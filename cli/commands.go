package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/inference"
	"github.com/upb/llm-router/services/routing"
)

func (c *CLI) askCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask the best provider for a use case",
		Long:  "Runs the use case waterfall: preferred providers first, then every other registered provider, stopping at the first answer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
				res, err := deps.Inference.Best(ctx, inference.QueryRequest{
					Prompt:  promptFrom(args),
					UseCase: c.useCase,
				})
				if err != nil {
					return err
				}
				if !res.Outcome.Success() {
					c.exitCode = ExitNoAnswer
					fmt.Fprintf(cmd.ErrOrStderr(), "llmctl: %s\n", res.Outcome.Error)
				}
				if c.jsonOut {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				return writeBest(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&c.useCase, "use-case", "u", string(routing.UseCaseGeneral),
		"healthcare, accessibility, general or cost_sensitive")
	return cmd
}

func (c *CLI) compareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <prompt>",
		Short: "Send a prompt to every provider and compare the answers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
				res, err := deps.Inference.Compare(ctx, inference.QueryRequest{
					Prompt: promptFrom(args),
					Mode:   inference.ModeCompare,
				})
				if err != nil {
					return err
				}
				if res.Report.SuccessfulModels == 0 {
					c.exitCode = ExitNoAnswer
				}
				if c.jsonOut {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				return writeCompare(cmd.OutOrStdout(), res)
			})
		},
	}
}

func (c *CLI) providersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
				infos := deps.Inference.Providers()
				if c.jsonOut {
					return writeJSON(cmd.OutOrStdout(), infos)
				}
				return writeProviders(cmd.OutOrStdout(), infos)
			})
		},
	}
}

func (c *CLI) explainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <use-case>",
		Short: "Explain how a use case picks its provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withDeps(cmd, func(ctx context.Context, deps *app.Dependencies) error {
				if _, err := deps.Inference.Explain(args[0]); err != nil {
					return err
				}
				u, _ := routing.ParseUseCase(args[0])

				for _, info := range deps.Inference.UseCases() {
					if info.Name != u {
						continue
					}
					if c.jsonOut {
						return writeJSON(cmd.OutOrStdout(), info)
					}
					return writeUseCase(cmd.OutOrStdout(), info, deps.Router.ListNames())
				}
				return services.NewNotFoundError(services.ErrUseCaseNotFound, "use case", args[0])
			})
		},
	}
}
