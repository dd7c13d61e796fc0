package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keylease/keylease/pkg/client"
)

var (
	exchangeRole   string
	exchangeTTL    time.Duration
	exchangeIssuer string
	exchangeJSON   bool
)

var exchangeCmd = &cobra.Command{
	Use:   "exchange [token]",
	Short: "Exchange an identity token for a short-lived credential",
	Long: `Exchanges a signed identity token (e.g. a GitHub Actions OIDC token)
for a credential under a lease. Pass '-' to read the token from stdin.`,
	Example: `  # exchange the GitHub Actions job token for the ci-deploy role
  keylease exchange "$ACTIONS_ID_TOKEN" --role ci-deploy --ttl 15m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := tokenArg(args[0])
		if err != nil {
			return err
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		result, correlation, err := cli.Exchange(cmd.Context(), token, exchangeRole, client.ExchangeOptions{
			TTL:    exchangeTTL,
			Issuer: exchangeIssuer,
		})
		if err != nil {
			return logError(err, correlation, "exchange failed")
		}

		logSuccess("lease %s issued for role %s (expires %s)",
			bold(result.Lease.Handle), bold(result.Lease.Role),
			result.Lease.ExpiresAt.Format(time.RFC3339))

		if exchangeJSON {
			return printJSON(result)
		}

		fmt.Println(bold("\n── Credential ──"))
		for key, value := range result.Credential.Data {
			fmt.Printf("  %s: %s\n", faint(key), value)
		}
		fmt.Printf("  %s: %s\n", faint("fingerprint"), result.Credential.Fingerprint)
		return nil
	},
}

// tokenArg resolves a token argument, reading stdin when it is '-'.
func tokenArg(arg string) (string, error) {
	token := arg
	if arg == "-" {
		log.Debug().Msg("Reading token from stdin")
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return "", fmt.Errorf("failed to read token from stdin: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	return token, nil
}

func init() {
	rootCmd.AddCommand(exchangeCmd)

	exchangeCmd.Flags().StringVarP(&exchangeRole, "role", "r", "", "Credential role to request")
	exchangeCmd.Flags().DurationVar(&exchangeTTL, "ttl", 0, "Requested lease TTL (default: role default)")
	exchangeCmd.Flags().StringVar(&exchangeIssuer, "issuer", "", "Trust config to verify against (optional)")
	exchangeCmd.Flags().BoolVar(&exchangeJSON, "json", false, "Print the full response as JSON")

	_ = exchangeCmd.MarkFlagRequired("role")
}
