package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/lumen/internal/identity"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget this device's identity",
	Long: `Clear the stored device identity.

The next run registers the screen again under a newly generated id, or under
the id passed with --device-id. The old device document is left in place for
an operator to delete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveIdentityPath()
		if err := identity.NewFile(path).Clear(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "identity cleared (%s)\n", path)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print this device's identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := identity.NewFile(resolveIdentityPath()).Get()
		if errors.Is(err, identity.ErrNoIdentity) {
			return fmt.Errorf("no identity yet; it is created on the first run")
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}
