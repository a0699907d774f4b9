package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ai-teammate/mytube/moments/internal/media"
	"github.com/ai-teammate/mytube/moments/internal/processor"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	want := []string{"enqueue", "migrate", "normalize", "probe", "process", "trigger", "worker"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err=%v)", name, err)
		}
	}
}

func TestLocalRequest(t *testing.T) {
	req := localRequest("/tmp/in/Clip-01.MOV", []byte("abc"))

	if req.ContentID != "Clip-01" {
		t.Errorf("ContentID: want Clip-01, got %q", req.ContentID)
	}
	if req.Metadata.Filename != "Clip-01.MOV" {
		t.Errorf("Filename: want Clip-01.MOV, got %q", req.Metadata.Filename)
	}
	if req.Metadata.MIMEType != "video/mov" {
		t.Errorf("MIMEType: want video/mov, got %q", req.Metadata.MIMEType)
	}
	if req.Metadata.Size != 3 {
		t.Errorf("Size: want 3, got %d", req.Metadata.Size)
	}
}

func TestWriteOutputs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res := processor.Result{
		Success:        true,
		ContentID:      "m1",
		VideoMetadata:  media.Metadata{Format: "mp4"},
		ProcessedVideo: media.TransformResult{OutputBytes: []byte("video")},
		Thumbnail:      media.Thumbnail{Data: []byte("thumb"), Format: "jpeg"},
	}

	if err := writeOutputs(dir, res); err != nil {
		t.Fatalf("writeOutputs: %v", err)
	}
	for name, want := range map[string][]byte{"m1.mp4": []byte("video"), "m1.thumb.jpeg": []byte("thumb")} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s: want %q, got %q", name, want, got)
		}
	}
}

func TestWriteOutputs_SkipsEmptyThumbnail(t *testing.T) {
	dir := t.TempDir()
	res := processor.Result{
		ContentID:      "m2",
		VideoMetadata:  media.Metadata{Format: "mp4"},
		ProcessedVideo: media.TransformResult{OutputBytes: []byte("video")},
		Thumbnail:      media.Thumbnail{Format: "jpeg"},
	}

	if err := writeOutputs(dir, res); err != nil {
		t.Fatalf("writeOutputs: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "m2.thumb.jpeg")); !os.IsNotExist(err) {
		t.Errorf("expected no thumbnail file, stat err = %v", err)
	}
}
