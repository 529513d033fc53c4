package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/navbuddy/navbuddy/audit"
	"github.com/navbuddy/navbuddy/gate"
	"github.com/navbuddy/navbuddy/intent"
	"github.com/navbuddy/navbuddy/internal/clifmt"
	"github.com/navbuddy/navbuddy/internal/pathutil"
	"github.com/navbuddy/navbuddy/llm/ollama"
	"github.com/navbuddy/navbuddy/policy"
	"github.com/spf13/viper"
)

func policyConfigFromViper() policy.Config {
	return policy.Config{
		AllowedRoots:     viper.GetStringSlice("policy.allowed_roots"),
		ExcludedPatterns: viper.GetStringSlice("policy.excluded_patterns"),
		MaxDepth:         viper.GetInt("policy.max_depth"),
		FollowSymlinks:   viper.GetBool("policy.follow_symlinks"),
		ConfirmOps:       viper.GetStringSlice("policy.confirm_ops"),
		ConfirmTimeout:   viper.GetDuration("policy.confirm_timeout"),
	}
}

func policyFromViper() (*policy.Policy, error) {
	return policy.Load(policyConfigFromViper())
}

func oracleClientFromViper() *ollama.Client {
	return ollama.New(ollama.Config{
		BaseURL: strings.TrimSpace(viper.GetString("oracle.base_url")),
		Timeout: viper.GetDuration("oracle.timeout"),
	})
}

func translatorFromViper() *intent.Translator {
	return &intent.Translator{
		Client:        oracleClientFromViper(),
		Model:         strings.TrimSpace(viper.GetString("oracle.model")),
		Timeout:       viper.GetDuration("oracle.timeout"),
		MinConfidence: viper.GetFloat64("oracle.min_confidence"),
	}
}

func auditSinkFromViper(log *slog.Logger) audit.Sink {
	jsonlPath := strings.TrimSpace(viper.GetString("audit.jsonl_path"))
	if jsonlPath == "" {
		home, err := os.UserHomeDir()
		if err == nil && strings.TrimSpace(home) != "" {
			jsonlPath = filepath.Join(home, ".navbuddy", "audit.jsonl")
		}
	}
	jsonlPath = pathutil.ExpandHomePath(jsonlPath)
	if strings.TrimSpace(jsonlPath) == "" {
		return audit.NopSink{}
	}

	sink, err := audit.NewJSONLSink(jsonlPath, viper.GetInt64("audit.rotate_max_bytes"))
	if err != nil {
		log.Warn("audit_sink_error", "path", jsonlPath, "error", err.Error())
		return audit.NopSink{}
	}
	return sink
}

func approvalStoreFromViper(log *slog.Logger) gate.ApprovalStore {
	dsn := strings.TrimSpace(viper.GetString("approvals.dsn"))
	if dsn == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return nil
		}
		dsn = filepath.Join(home, ".navbuddy", "approvals.db")
	}
	dsn = pathutil.ExpandHomePath(dsn)
	if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
		log.Warn("approvals_dir_error", "error", err.Error())
		return nil
	}

	store, err := gate.NewSQLiteApprovalStore(dsn)
	if err != nil {
		log.Warn("approvals_store_error", "dsn", dsn, "error", err.Error())
		return nil
	}
	return store
}

// confirmerFromViper prefers an interactive terminal prompt; without a
// terminal it suspends destructive requests on the approval store so a
// second navbuddy invocation can resolve them.
func confirmerFromViper(log *slog.Logger) gate.Confirmer {
	if clifmt.Interactive() {
		return &PromptConfirmer{In: os.Stdin, Out: os.Stderr}
	}
	store := approvalStoreFromViper(log)
	if store == nil {
		log.Warn("confirmer_fallback_deny", "reason", "no terminal and no approval store")
		return gate.AutoDenyConfirmer{}
	}
	return &gate.StoreConfirmer{
		Store: store,
		Poll:  viper.GetDuration("approvals.poll_interval"),
		Log:   log,
	}
}

func execConfigFromViper() gate.ExecConfig {
	return gate.ExecConfig{
		ReadMaxBytes:     viper.GetInt64("exec.read_max_bytes"),
		ListMaxEntries:   viper.GetInt("exec.list_max_entries"),
		SearchMaxFiles:   viper.GetInt("exec.search_max_files"),
		SearchMaxMatches: viper.GetInt("exec.search_max_matches"),
		CommandTimeout:   viper.GetDuration("exec.command_timeout"),
		CommandMaxOutput: viper.GetInt("exec.command_max_output"),
	}
}

func gatekeeperFromViper(log *slog.Logger) (*gate.Gatekeeper, *policy.Store, error) {
	pol, err := policyFromViper()
	if err != nil {
		return nil, nil, err
	}
	store := policy.NewStore(pol)

	gk := gate.New(
		store,
		translatorFromViper(),
		confirmerFromViper(log),
		auditSinkFromViper(log),
		execConfigFromViper(),
		log,
	)

	log.Info("gatekeeper_ready",
		"allowed_roots", len(pol.AllowedRoots()),
		"excluded_patterns", len(pol.ExcludedPatterns()),
		"max_depth", pol.MaxDepth(),
		"model", strings.TrimSpace(viper.GetString("oracle.model")),
	)
	return gk, store, nil
}
