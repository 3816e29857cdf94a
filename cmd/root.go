// Package cmd wires the command line to an interactive session.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/entro314-labs/modelkill/internal/config"
	"github.com/entro314-labs/modelkill/internal/deleter"
	"github.com/entro314-labs/modelkill/internal/logging"
	"github.com/entro314-labs/modelkill/internal/scan"
	"github.com/entro314-labs/modelkill/internal/sig"
	"github.com/entro314-labs/modelkill/internal/ui"
)

const Version = "0.1.0"

var (
	configPath     string
	workers        int
	maxDepth       int
	skipDirs       []string
	noConfirm      bool
	logFile        string
	logLevel       string
	listSignatures bool
)

var rootCmd = &cobra.Command{
	Use:   "modelkill [path]",
	Short: "Find and delete model weight files by content signature",
	Long: `modelkill walks a directory tree, sniffs the first bytes of every regular
file and lists the ones carrying a known model-weight signature (GGUF and the
legacy ggml family), whatever their extension. Matches show up in an
interactive table while the scan is still running; select the ones you no
longer need and reclaim the space.

Deletion always happens through a handle anchored at the scanned root and,
unless --no-confirm is set, only after an explicit confirmation.`,
	Version:       Version,
	Args:          cobra.MaximumNArgs(1),
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a JSON config file")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "scan workers (0 = one per CPU, 1 = deterministic order)")
	rootCmd.Flags().IntVar(&maxDepth, "depth", 0, "maximum directory depth to scan (0 = unlimited)")
	rootCmd.Flags().StringSliceVar(&skipDirs, "skip", nil, "additional directory names to skip")
	rootCmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "delete without confirmation prompts")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "write diagnostics to this file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&listSignatures, "list-signatures", false, "print known signatures and exit")
}

func run(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	cfg := config.Config{}
	if path, ok, err := config.Resolve(root, configPath); err != nil {
		return err
	} else if ok {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	table, err := sig.BuildTable(cfg.Signatures, cfg.Disable)
	if err != nil {
		return err
	}
	if listSignatures {
		for _, line := range table.Describe() {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	}

	flags := cmd.Flags()
	if !flags.Changed("workers") && cfg.Workers > 0 {
		workers = cfg.Workers
	}
	if !flags.Changed("depth") && cfg.Depth > 0 {
		maxDepth = cfg.Depth
	}
	if !flags.Changed("log-file") && cfg.LogFile != "" {
		logFile = cfg.LogFile
	}
	if !flags.Changed("log-level") && cfg.LogLevel != "" {
		logLevel = cfg.LogLevel
	}
	confirmDeletes := true
	if cfg.Confirm != nil {
		confirmDeletes = *cfg.Confirm
	}
	if noConfirm {
		confirmDeletes = false
	}
	skip := config.MergeSkipDirs(scan.DefaultSkipDirs(), append(cfg.Skip, skipDirs...))

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("invalid root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid root %s: not a directory", root)
	}

	rootHandle, err := os.OpenRoot(root)
	if err != nil {
		return fmt.Errorf("open root %s: %w", root, err)
	}
	defer rootHandle.Close()

	log, logCloser, err := logging.New(logFile, logLevel)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	log.Info().Str("root", root).Int("workers", workers).Msg("starting session")

	model := ui.New(cmd.Context(), ui.Options{
		Scan: scan.Options{
			Root:       root,
			RootHandle: rootHandle,
			Table:      table,
			SkipDirs:   skip,
			MaxDepth:   maxDepth,
			Workers:    workers,
			Log:        log,
		},
		Executor:       deleter.New(rootHandle, log),
		ConfirmDeletes: confirmDeletes,
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}

// resolveRoot picks the scan root: the positional argument when given, the
// user's home directory otherwise.
func resolveRoot(args []string) (string, error) {
	if len(args) > 0 {
		return filepath.Abs(args[0])
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return home, nil
}
