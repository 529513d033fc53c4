package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/navbuddy/navbuddy/internal/clifmt"
	"github.com/navbuddy/navbuddy/paths"
	"github.com/spf13/cobra"
)

func buildPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the sandbox policy",
	}
	cmd.AddCommand(buildPolicyShowCmd(), buildPolicyCheckCmd())
	return cmd
}

func buildPolicyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the loaded policy snapshot as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := policyFromViper()
			if err != nil {
				return err
			}
			out, err := pol.DescribeYAML()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func buildPolicyCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>...",
		Short: "Resolve paths against the policy and report the denial rule",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := policyFromViper()
			if err != nil {
				return err
			}
			denied := false
			for _, raw := range args {
				canon, err := paths.Resolve(raw, pol)
				if err != nil {
					denied = true
					var rerr *paths.ResolutionError
					if errors.As(err, &rerr) {
						fmt.Println(clifmt.Danger(fmt.Sprintf("%s\tdenied\t%s", raw, rerr.Rule)))
					} else {
						fmt.Println(clifmt.Danger(fmt.Sprintf("%s\tdenied\t%v", raw, err)))
					}
					continue
				}
				fmt.Println(clifmt.Success(fmt.Sprintf("%s\tallowed\t%s", raw, canon)))
			}
			if denied {
				os.Exit(1)
			}
			return nil
		},
	}
}
