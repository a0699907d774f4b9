package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ai-teammate/mytube/moments/internal/config"
	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe <file>...",
	Short: "Print the metadata of local video files",
	Long: `probe reads each file with ffprobe and prints its metadata as JSON.
When ffprobe fails the size-based estimate is printed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

type probeOutput struct {
	File     string         `json:"file"`
	Metadata media.Metadata `json:"metadata"`
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := config.PipelineFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	p, err := newPipeline("moments.probe", cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	prober := probe.NewProber(p.runner, p.pol.Processing.TargetResolution, p.log).WithObserver(p.metrics)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, file := range args {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		meta, err := prober.ProbeExt(cmd.Context(), data, filepath.Ext(file))
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if err := enc.Encode(probeOutput{File: file, Metadata: meta}); err != nil {
			return err
		}
	}
	return nil
}
