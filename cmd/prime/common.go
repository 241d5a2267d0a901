package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Returns a cobra PreRunE function that binds the named local flags of the
// command to viper keys of the same name. Binding is deferred until the command
// runs so that sub-commands can share flag names.
func bindFlags(names ...string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for _, name := range names {
			if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
				return fmt.Errorf("failed to bind %s pflag: %w", name, err)
			}
		}
		return nil
	}
}
