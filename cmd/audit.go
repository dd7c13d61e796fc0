package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keylease/keylease/pkg/client"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Administrative audit commands",
	Long:  `View the audit stream and inspect active leases on the server. Requires an admin session token.`,
}

var (
	auditLogCorrelation string
	auditLogPrincipal   string
	auditLogFingerprint string
	auditLogLease       string
)

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit stream entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Info().Msg("Fetching audit entries...")
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:         uint(limit),
			CorrelationID: auditLogCorrelation,
			PrincipalID:   auditLogPrincipal,
			Fingerprint:   auditLogFingerprint,
			Lease:         auditLogLease,
		})
		if err != nil {
			return logError(err, correlation, "failed to fetch audit entries")
		}

		log.Info().Msgf("Retrieved %d audit entries", len(audits))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Action", "Principal", "Granted", "Lease", "Stage", "Error",
		})

		for _, e := range audits {
			status := "YES"
			if !e.Granted {
				status = "NO"
			}

			sub := "(unknown)"
			if e.Principal != nil {
				sub = truncate(e.Principal.ID, 35)
			}

			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Action,
				sub,
				status,
				e.LeaseHandle,
				e.Stage,
				truncate(e.Error, 40),
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var auditLeasesCmd = &cobra.Command{
	Use:   "leases",
	Short: "List all active leases",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		leases, correlation, err := cli.ListActiveLeases(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to fetch leases")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Handle", "Role", "Principal", "State", "Expires", "Source",
		})

		for _, l := range leases {
			t.AppendRow(table.Row{
				l.Handle,
				l.Role,
				truncate(l.Principal, 35),
				string(l.State),
				l.ExpiresAt.Format(time.RFC3339),
				l.SourceName,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditLogCmd)
	auditCmd.AddCommand(auditLeasesCmd)

	auditLogCmd.Flags().IntP("limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().StringVar(&auditLogCorrelation, "correlation-id", "", "Filter by correlation ID")
	auditLogCmd.Flags().StringVar(&auditLogPrincipal, "principal", "", "Filter by principal ID")
	auditLogCmd.Flags().StringVar(&auditLogFingerprint, "fingerprint", "", "Filter by credential fingerprint")
	auditLogCmd.Flags().StringVar(&auditLogLease, "lease", "", "Filter by lease handle")
}
