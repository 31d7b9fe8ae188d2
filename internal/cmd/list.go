package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3leaps/gorunner/internal/config"
)

var listDir string
var listFile string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List origins or job ids from the configured group documents",
}

var listNamesCmd = &cobra.Command{
	Use:   "names",
	Short: "List every origin name",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := (config.Discovery{File: listFile, Dir: listDir}).Load()
		if err != nil {
			return err
		}
		for _, g := range groups {
			for _, o := range g.Origins {
				fmt.Fprintln(cmd.OutOrStdout(), o.Name)
			}
		}
		return nil
	},
}

var listIDsCmd = &cobra.Command{
	Use:   "ids <origin>",
	Short: "List every job id declared under an origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		origin := args[0]
		groups, err := (config.Discovery{File: listFile, Dir: listDir}).Load()
		if err != nil {
			return err
		}
		found := false
		for _, g := range groups {
			for _, o := range g.Origins {
				if o.Name != origin {
					continue
				}
				found = true
				for _, j := range o.Jobs {
					fmt.Fprintln(cmd.OutOrStdout(), j.ID)
				}
			}
		}
		if !found {
			return fmt.Errorf("origin %q not found", origin)
		}
		return nil
	},
}

func init() {
	listCmd.PersistentFlags().StringVarP(&listFile, "file", "f", "", "single configuration file")
	listCmd.PersistentFlags().StringVarP(&listDir, "dir", "d", "", "configuration root directory (default docs/)")
	listCmd.AddCommand(listNamesCmd)
	listCmd.AddCommand(listIDsCmd)
}
