package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Maeiro/MMMMM/internal/logging"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage the server address to update URL registry",
}

var serversSetCmd = &cobra.Command{
	Use:   "set <address> <url>",
	Short: "Record the update URL for a server address",
	Args:  usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		if err := reg.Set(args[0], args[1]); err != nil {
			return err
		}
		logging.Infof("%s -> %s\n", args[0], args[1])
		return nil
	},
}

var serversGetCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Print the update URL used for a server address",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		u, ok := reg.Get(args[0])
		if !ok {
			u = reg.Resolve(args[0])
			logging.Debugf("Verbose: %s is not registered, using default\n", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	},
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		entries := reg.List()
		if len(entries) == 0 {
			logging.Infoln("No servers registered.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Address, e.URL)
		}
		return nil
	},
}

var serversRemoveCmd = &cobra.Command{
	Use:   "remove <address>",
	Short: "Forget a server address",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		removed, err := reg.Remove(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("server %q is not registered", args[0])
		}
		logging.Infof("Removed %s\n", args[0])
		return nil
	},
}

func init() {
	serversCmd.AddCommand(serversSetCmd, serversGetCmd, serversListCmd, serversRemoveCmd)
	rootCmd.AddCommand(serversCmd)
}
