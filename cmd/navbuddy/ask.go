package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/navbuddy/navbuddy/gate"
	"github.com/navbuddy/navbuddy/intent"
	"github.com/navbuddy/navbuddy/internal/clifmt"
	"github.com/navbuddy/navbuddy/policy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func buildAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [request...]",
		Short: "Translate a natural-language request and run it through the gatekeeper",
		Long: `Submit a request like "show me the largest files in my downloads folder".
With no arguments, ask starts an interactive session; the policy file is
watched and reloaded on change for the lifetime of the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()
			gk, store, err := gatekeeperFromViper(log)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				return runAskOnce(cmd.Context(), gk, strings.Join(args, " "))
			}
			return runAskSession(cmd.Context(), gk, store, log)
		},
	}
}

func runAskOnce(ctx context.Context, gk *gate.Gatekeeper, text string) error {
	res, err := gk.Submit(ctx, text)
	if err != nil {
		return askError(err)
	}
	printResult(res)
	if res.Status != gate.StatusSuccess {
		os.Exit(1)
	}
	return nil
}

func runAskSession(ctx context.Context, gk *gate.Gatekeeper, store *policy.Store, log *slog.Logger) error {
	if cfgFile := strings.TrimSpace(viper.ConfigFileUsed()); cfgFile != "" {
		w, err := policy.NewWatcher(cfgFile, store, func() (*policy.Policy, error) {
			if err := viper.ReadInConfig(); err != nil {
				return nil, err
			}
			return policyFromViper()
		}, log)
		if err != nil {
			log.Warn("policy_watch_unavailable", "error", err.Error())
		} else {
			defer w.Close()
		}
	}

	fmt.Println(clifmt.Headerf("navbuddy (model %s) — empty line to quit", gk.ListModelsHint()))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(clifmt.Key("> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			return nil
		}
		res, err := gk.Submit(ctx, text)
		if err != nil {
			fmt.Println(clifmt.Warn(askError(err).Error()))
			continue
		}
		printResult(res)
	}
}

// askError maps translator sentinels to operator-facing messages; the
// request never reached the gatekeeper, so there is nothing to audit.
func askError(err error) error {
	switch {
	case errors.Is(err, intent.ErrOracleUnavailable):
		return fmt.Errorf("oracle unavailable, is Ollama running? (%v)", err)
	case errors.Is(err, intent.ErrAmbiguousIntent):
		return fmt.Errorf("request is ambiguous, please rephrase: %v", err)
	case errors.Is(err, intent.ErrUnparsableResponse):
		return fmt.Errorf("could not understand the model's reply, try again: %v", err)
	default:
		return err
	}
}

func printResult(res gate.ExecutionResult) {
	switch res.Status {
	case gate.StatusSuccess:
		fmt.Println(clifmt.Success(fmt.Sprintf("ok: %s (%d path(s))", res.Kind, len(res.AffectedPaths))))
	case gate.StatusDenied:
		fmt.Println(clifmt.Danger(fmt.Sprintf("denied (%s): %s", res.DenialRule, res.Err)))
	default:
		fmt.Println(clifmt.Danger(fmt.Sprintf("failed: %s", res.Err)))
	}
	for _, it := range res.Items {
		if it.OK {
			continue
		}
		fmt.Println(clifmt.Warn(fmt.Sprintf("  %s: %s", it.Path, it.Error)))
	}
	if out := strings.TrimRight(res.Output, "\n"); out != "" {
		fmt.Println(out)
	}
}
