package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/crystalpowers/internal/config"
	"github.com/cory-johannsen/crystalpowers/internal/gameserver"
)

func newAdminCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin credentials for privileged RPCs",
	}
	cmd.AddCommand(newHashTokenCmd(opts))
	return cmd
}

func newHashTokenCmd(opts *options) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash of an admin token for admin.token_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := gameserver.HashToken(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !write {
				fmt.Fprintln(out, hash)
				return nil
			}
			if err := config.WriteValue(opts.configPath, "admin.token_hash", hash); err != nil {
				return err
			}
			fmt.Fprintln(out, Good.Render(IconKey+" admin.token_hash written to "+opts.configPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "store the hash in the config file")
	return cmd
}
