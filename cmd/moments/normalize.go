package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ai-teammate/mytube/moments/internal/config"
	"github.com/ai-teammate/mytube/moments/internal/policy"
	"github.com/ai-teammate/mytube/moments/internal/processor"
)

var normalizeFlags struct {
	outDir string
	limit  int
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>...",
	Short: "Run local video files through the processing pipeline",
	Long: `normalize processes local files concurrently without touching storage
or the database. Results are printed as JSON; with --out the processed
video and thumbnail of every successful file are written to that directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNormalize,
}

func init() {
	f := normalizeCmd.Flags()
	f.StringVarP(&normalizeFlags.outDir, "out", "o", "", "directory for processed outputs")
	f.IntVar(&normalizeFlags.limit, "limit", 0, "maximum concurrent files; defaults to BATCH_LIMIT")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, err := config.PipelineFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	p, err := newPipeline("moments.normalize", cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	reqs := make([]processor.Request, 0, len(args))
	for _, file := range args {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		reqs = append(reqs, localRequest(file, data))
	}

	limit := normalizeFlags.limit
	if limit <= 0 {
		limit = cfg.BatchLimit
	}
	results := p.proc.ProcessBatch(cmd.Context(), reqs, limit)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		} else if normalizeFlags.outDir != "" {
			if err := writeOutputs(normalizeFlags.outDir, res); err != nil {
				return err
			}
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// localRequest names the request after the file and derives its MIME type
// from the extension.
func localRequest(file string, data []byte) processor.Request {
	base := filepath.Base(file)
	ext := strings.ToLower(filepath.Ext(base))
	return processor.Request{
		ContentID: strings.TrimSuffix(base, filepath.Ext(base)),
		OwnerID:   "local",
		Data:      data,
		Metadata: processor.FileMetadata{
			Filename: base,
			MIMEType: "video/" + strings.TrimPrefix(ext, "."),
			Size:     int64(len(data)),
		},
	}
}

func writeOutputs(dir string, res processor.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	video := filepath.Join(dir, res.ContentID+policy.ExtForFormat(res.VideoMetadata.Format))
	if err := os.WriteFile(video, res.ProcessedVideo.OutputBytes, 0o644); err != nil {
		return fmt.Errorf("write video: %w", err)
	}
	if res.Thumbnail.Empty() {
		return nil
	}
	thumb := filepath.Join(dir, res.ContentID+".thumb"+policy.ExtForFormat(res.Thumbnail.Format))
	if err := os.WriteFile(thumb, res.Thumbnail.Data, 0o644); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	return nil
}
