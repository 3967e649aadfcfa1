package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/PhracturedBlue/async-upnp-media-server/internal/config"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(configFlag))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set paths.media_dirs before running the server.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Media directories: %s\n", strings.Join(cfg.Paths.MediaDirs, ", "))
			fmt.Fprintf(out, "Cache directory: %s\n", cfg.Paths.CacheDir)
			fmt.Fprintf(out, "Database: %s\n", cfg.Paths.DBPath)
			fmt.Fprintf(out, "Bind address: %s\n", cfg.Server.Bind)
			fmt.Fprintf(out, "Friendly name: %s\n", cfg.Server.FriendlyName)
			fmt.Fprintf(out, "Cache budget: %s\n", humanize.Bytes(uint64(cfg.Cache.MaxSizeBytes)))
			fmt.Fprintf(out, "Eviction grace: %s\n", cfg.EvictGrace())
			fmt.Fprintf(out, "Probe slots: %d\n", cfg.Cache.ProbeSlots)
			fmt.Fprintf(out, "ffmpeg: %s (timeout %s)\n", cfg.Tools.FFmpeg, cfg.ExtractTimeout())
			fmt.Fprintf(out, "ffprobe: %s (timeout %s)\n", cfg.Tools.FFprobe, cfg.ProbeTimeout())
			return nil
		},
	}
}
