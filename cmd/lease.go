package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var leaseCmd = &cobra.Command{
	Use:   "lease",
	Short: "Renew or revoke credential leases",
}

var leaseRenewTTL time.Duration

var leaseRenewCmd = &cobra.Command{
	Use:   "renew HANDLE",
	Short: "Extend a lease before it expires",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		expiry, correlation, err := cli.RenewLease(cmd.Context(), args[0], leaseRenewTTL)
		if err != nil {
			return logError(err, correlation, "renewal failed")
		}

		logSuccess("lease %s renewed, new expiry: %s", bold(args[0]), expiry.Format(time.RFC3339))
		return nil
	},
}

var leaseRevokeCmd = &cobra.Command{
	Use:   "revoke HANDLE",
	Short: "Revoke a lease and invalidate its credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		status, correlation, err := cli.RevokeLease(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "revocation failed")
		}

		if status == "revocation_pending" {
			logSuccess("lease %s revoked; source-side cleanup still pending", bold(args[0]))
		} else {
			logSuccess("lease %s revoked", bold(args[0]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(leaseCmd)
	leaseCmd.AddCommand(leaseRenewCmd)
	leaseCmd.AddCommand(leaseRevokeCmd)

	leaseRenewCmd.Flags().DurationVar(&leaseRenewTTL, "ttl", 0, "Requested extension (default: lease's issued TTL)")
}
