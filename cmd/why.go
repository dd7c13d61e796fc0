package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/pkg/client"
)

var (
	whyToken         string
	whyIssuer        string
	whyReplayID      string
	whyBindingFilter string
)

var whyCmd = &cobra.Command{
	Use:   "why",
	Short: "Explain why a token matches (or does not match) role bindings",
	Long: `Simulates an exchange against the server and returns a detailed trace
of the binding evaluation. Useful for debugging why a specific workload
is denied or matches the wrong binding.

Note: requires a reachable keylease server and an admin session.`,
	Example: `  # Why is my token denied? Which bindings is it matching?
  keylease why --token <token>

  # Why did request abc123 get denied?
  keylease why --replay abc123

  # Why is it not matching the 'ci-main' binding?
  keylease why --token <token> --binding ci-main`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if whyToken == "" && whyReplayID == "" {
			return fmt.Errorf("either --token or --replay is required")
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		trace, correlation, err := cli.ExplainTrace(cmd.Context(), client.ExplainOpts{
			Token:    whyToken,
			Issuer:   whyIssuer,
			ReplayID: whyReplayID,
		})
		if err != nil {
			return logError(err, correlation, "failed to fetch trace")
		}

		printTrace(trace)
		return nil
	},
}

func printTrace(trace *core.MatchTrace) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("\n%s for Principal: %s (Issuer: %s)\n",
		bold("Match Trace"),
		bold(trace.Principal.ID),
		trace.Principal.Issuer)

	fmt.Println(faint("---------------------------------------------------"))

	for _, res := range trace.BindingResults {
		if whyBindingFilter != "" && res.BindingName != whyBindingFilter {
			continue
		}

		icon := red("✖")
		if res.Matched {
			icon = green("✔")
		}

		fmt.Printf("%s Binding: %s\n", icon, bold(res.BindingName))
		if res.Description != "" {
			fmt.Printf("  %s\n", faint(res.Description))
		}

		for _, check := range res.Checks {
			checkIcon := red("✖")
			if check.Matched {
				checkIcon = green("✔")
			}
			fmt.Printf("    %s %s\n", checkIcon, check.Expression)

			if check.Reason != "" {
				reason := check.Reason
				if check.Matched {
					reason = faint(reason)
				} else {
					reason = yellow(reason)
				}
				fmt.Printf("      ↳ %s\n", reason)
			}
		}

		fmt.Println()
	}

	fmt.Println("---------------------------------------------------")
	if trace.Matched {
		fmt.Printf("Decision: %s via binding '%s'\n", bold(green("matched")), bold(trace.MatchedBinding))
	} else {
		fmt.Printf("Decision: %s\n", bold(red("no match")))
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(whyCmd)

	whyCmd.Flags().StringVarP(&whyToken, "token", "t", "", "Token to explain")
	whyCmd.Flags().StringVar(&whyReplayID, "replay", "", "Replay the principal from an audit entry by correlation ID")
	whyCmd.Flags().StringVarP(&whyBindingFilter, "binding", "b", "", "Filter output to a specific binding name (optional)")
	whyCmd.Flags().StringVar(&whyIssuer, "issuer", "", "Simulate coming from this issuer (optional)")
}
