package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keylease/keylease/internal/audit"
)

var (
	fingerprintSourceType string
	fingerprintRaw        bool
)

var fingerprintCmd = &cobra.Command{
	Use:     "fingerprint [secret]",
	Aliases: []string{"fp"},
	Short:   `Calculate the fingerprint of a credential secret`,
	Long: `Calculates the non-reversible fingerprint of a credential secret using
the source's algorithm. This is the value stored in the audit stream's
'fingerprint' field; it lets you correlate a leaked secret with the lease
that issued it without the broker ever logging the material.`,
	Example: `  # Calculate the fingerprint of a service account key document
  keylease fingerprint --type gcp-key "$(cat key.json)"

  # Calculate the fingerprint of a secret from stdin
  cat secret | keylease fingerprint --type stub -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := tokenArg(args[0])
		if err != nil {
			return err
		}

		fp := audit.CalculateFingerprint(fingerprintSourceType, secret)

		if fingerprintRaw {
			fmt.Println(fp)
		} else {
			fmt.Println("Source Type:", fingerprintSourceType)
			fmt.Println("Fingerprint:", fp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)

	fingerprintCmd.Flags().StringVar(&fingerprintSourceType, "type", audit.DefaultFingerprintType,
		fmt.Sprintf("Source type (one of: %s)", strings.Join(audit.RegisteredFingerprinterTypes(), ", ")))
	fingerprintCmd.Flags().BoolVarP(&fingerprintRaw, "raw", "r", false,
		"Output only the fingerprint value without additional text")
}
