// cmd/agent/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sozercan/northwind-agent/internal/analyzer"
	"github.com/sozercan/northwind-agent/internal/batch"
	"github.com/sozercan/northwind-agent/internal/config"
	"github.com/sozercan/northwind-agent/internal/llm"
	"github.com/sozercan/northwind-agent/internal/retriever"
	"github.com/sozercan/northwind-agent/internal/signatures"
	"github.com/sozercan/northwind-agent/internal/store"
)

func main() {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:          "agent",
		Short:        "Answer analytic questions over the Northwind database and its documents",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite database")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	bindFlag(v, rootCmd, "store.path", "db")
	bindFlag(v, rootCmd, "log.level", "log-level")

	rootCmd.AddCommand(runCmd(v), schemaCmd(v))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

// setup loads configuration and installs the process logger.
func setup(v *viper.Viper, cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(v, file)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

func runCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Answer every question in a JSONL batch file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(v, cmd)
			if err != nil {
				return err
			}
			in, _ := cmd.Flags().GetString("batch")
			out, _ := cmd.Flags().GetString("out")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBatch(ctx, cfg, in, out)
		},
	}
	cmd.Flags().String("batch", "", "Input JSONL file of questions")
	cmd.Flags().String("out", "", "Output JSONL file of answers")
	cmd.Flags().Int("concurrency", 0, "Questions answered in parallel")
	cmd.Flags().String("docs", "", "Directory of markdown documents")
	_ = cmd.MarkFlagRequired("batch")
	_ = cmd.MarkFlagRequired("out")
	bindFlag(v, cmd, "batch.concurrency", "concurrency")
	bindFlag(v, cmd, "retriever.docs_dir", "docs")
	return cmd
}

func runBatch(ctx context.Context, cfg *config.Config, in, out string) error {
	db, err := store.Open(ctx, cfg.Store.Path, cfg.Store.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	docs := retriever.New(cfg.Retriever.DocsDir)

	provider, err := llm.NewOpenAI(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	a := analyzer.New(signatures.NewPredictor(provider, cfg.LLM.UseTools), docs, db, cfg.Retriever.TopK)
	runner := batch.NewRunner(a, cfg.Batch.Concurrency, slog.Default())
	return runner.RunFile(ctx, in, out)
}

func schemaCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the physical schema and the view summary given to the query generator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(v, cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := store.Open(ctx, cfg.Store.Path, cfg.Store.QueryTimeout)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer db.Close()

			tables, err := db.Schema(ctx)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(tables))
			for name := range tables {
				names = append(names, name)
			}
			sort.Strings(names)

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Tables:")
			for _, name := range names {
				fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(tables[name], ", "))
			}

			detailed, err := db.SchemaDetailed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w)
			fmt.Fprint(w, detailed)
			return nil
		},
	}
}
