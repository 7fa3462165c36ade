package build

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jsh-team/nodeworker/internal/bundle"
	"github.com/jsh-team/nodeworker/internal/config"
	"github.com/jsh-team/nodeworker/internal/utils/logger"
	"github.com/jsh-team/nodeworker/internal/workers/output"
)

var noManifest bool

// BuildCmd bundles the configured entries and their workers
var BuildCmd = &cobra.Command{
	Use:   "build [entries...]",
	Short: "Bundle entries and every ?nodeWorker import they reach",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := bindFlags(cmd, v); err != nil {
			return err
		}
		if len(args) > 0 {
			v.Set("entries", args)
		}
		if noManifest {
			v.Set("manifest", false)
		}

		cfg, err := config.Load(v, config.ConfigPath)
		if err != nil {
			return err
		}
		config.GlobalConfig = cfg
		if !config.Verbose {
			logger.SetLevel(cfg.LogLevel)
		}
		if config.ConfigFileUsed != "" {
			logger.Debug("Using config %s", config.ConfigFileUsed)
		}

		return runBuild(cmd.Context(), cfg)
	},
}

func init() {
	BuildCmd.Flags().StringP("outdir", "o", config.DefaultOutdir, "Output directory")
	BuildCmd.Flags().String("worker-dir", config.DefaultWorkerDir, "Directory for worker files, relative to outdir")
	BuildCmd.Flags().String("target", config.DefaultTarget, "Target environment (esnext, es20XX or nodeNN)")
	BuildCmd.Flags().Bool("sourcemap", false, "Emit linked source maps")
	BuildCmd.Flags().Bool("minify", false, "Minify outputs")
	BuildCmd.Flags().StringSlice("external", nil, "Packages to leave unbundled")
	BuildCmd.Flags().BoolVar(&noManifest, "no-manifest", false, "Do not write "+bundle.ManifestFileName)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for key, flag := range map[string]string{
		"outdir":     "outdir",
		"worker_dir": "worker-dir",
		"target":     "target",
		"sourcemap":  "sourcemap",
		"minify":     "minify",
		"external":   "external",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

func runBuild(ctx context.Context, cfg config.Config) error {
	startTime := time.Now()

	b, err := bundle.New(bundle.Options{
		Entries:   cfg.Entries,
		Outdir:    cfg.Outdir,
		WorkerDir: cfg.WorkerDir,
		Target:    cfg.Target,
		External:  cfg.External,
		Sourcemap: cfg.Sourcemap,
		Minify:    cfg.Minify,
		Splitting: cfg.Splitting,
		Manifest:  cfg.Manifest,
	})
	if err != nil {
		return err
	}

	logger.Info("Building %d entry point(s) into %s", len(cfg.Entries), b.Outdir())
	res, err := b.Run(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(res.Outputs),
		progressbar.OptionSetDescription("Writing outputs"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)
	var barMu sync.Mutex
	err = bundle.WriteOutputs(ctx, res, cfg.MaxConcurrentWrites, func(output.WriteResult) {
		barMu.Lock()
		bar.Add(1)
		barMu.Unlock()
	})
	bar.Finish()
	if err != nil {
		return err
	}

	for _, w := range res.Workers {
		logger.Info("Worker %s <- %s (%d import(s))", w.File, w.Source, len(w.Handles))
	}
	logger.Info("Build %s finished in %v: %d file(s) written to %s",
		res.BuildID, time.Since(startTime).Round(time.Millisecond), len(res.Outputs), res.Outdir)
	return nil
}
