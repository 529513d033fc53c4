package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/navbuddy/navbuddy/gate"
	"github.com/navbuddy/navbuddy/internal/clifmt"
	"github.com/spf13/cobra"
)

func buildApprovalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Review and resolve pending confirmations",
	}
	cmd.AddCommand(buildApprovalsListCmd(), buildApprovalsResolveCmd())
	return cmd
}

func buildApprovalsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending approval requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := approvalStoreFromViper(slog.Default())
			if store == nil {
				return fmt.Errorf("approval store unavailable")
			}
			pending, err := store.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println(clifmt.Dim("no pending approvals"))
				return nil
			}
			for _, rec := range pending {
				fmt.Println(clifmt.Headerf("%s\t%s\texpires %s", rec.ID, rec.Kind, rec.ExpiresAt.Format(time.RFC3339)))
				if rec.Summary != "" {
					fmt.Println("  " + rec.Summary)
				}
				for _, p := range rec.Paths {
					fmt.Println("  " + clifmt.Dim(p))
				}
			}
			return nil
		},
	}
}

func buildApprovalsResolveCmd() *cobra.Command {
	var approve, deny bool
	var actor, comment string

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Approve or deny a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approve == deny {
				return fmt.Errorf("pass exactly one of --approve or --deny")
			}
			store := approvalStoreFromViper(slog.Default())
			if store == nil {
				return fmt.Errorf("approval store unavailable")
			}
			status := gate.ApprovalDenied
			if approve {
				status = gate.ApprovalApproved
			}
			if err := store.Resolve(cmd.Context(), args[0], status, actor, comment); err != nil {
				return err
			}
			fmt.Println(clifmt.Success(fmt.Sprintf("%s %s", args[0], status)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&approve, "approve", false, "approve the request")
	cmd.Flags().BoolVar(&deny, "deny", false, "deny the request")
	cmd.Flags().StringVar(&actor, "actor", "", "who resolved it")
	cmd.Flags().StringVar(&comment, "comment", "", "optional resolution note")
	return cmd
}
