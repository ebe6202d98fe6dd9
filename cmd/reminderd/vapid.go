package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/X1ag/ReminderEngine/internal/infrastructure/webpush"
)

func NewVAPIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid",
		Short: "Generate a VAPID key pair",
		Long: `Generate a fresh VAPID key pair and print it in env-file form.
The public key also goes to the web client that creates push subscriptions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generate keys: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "VAPID_PUBLIC_KEY=%s\n", pub)
			fmt.Fprintf(out, "VAPID_PRIVATE_KEY=%s\n", priv)
			return nil
		},
	}
}
