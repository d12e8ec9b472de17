package filetracker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/agenthost/agenthost/internal/types"
)

// InlineThreshold is the default N_inline from spec §4.4: at or below this
// many changed files, deliver them individually; above it, archive first.
const InlineThreshold = 5

// Deliver sends the files named by changed (paths relative to root) through
// adapter, following the spec's inline-vs-archive policy. An archive
// produced for delivery is removed afterward since it is not user content.
func Deliver(ctx context.Context, adapter types.ChatAdapter, userID types.UserID, root string, changed []string, inlineThreshold int) error {
	if len(changed) == 0 {
		return nil
	}
	if inlineThreshold <= 0 {
		inlineThreshold = InlineThreshold
	}

	if len(changed) <= inlineThreshold {
		paths := make([]string, len(changed))
		for i, rel := range changed {
			paths[i] = filepath.Join(root, rel)
		}
		return adapter.SendFiles(ctx, userID, paths)
	}

	archivePath, err := archive(root, changed)
	if err != nil {
		return fmt.Errorf("archive changed files: %w", err)
	}
	defer os.Remove(archivePath)

	return adapter.SendFiles(ctx, userID, []string{archivePath})
}

// archive packs the named files (relative to root) into a single zip file
// under root's temp directory and returns its path.
func archive(root string, changed []string) (string, error) {
	tempDir := filepath.Join(root, "temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	archivePath := filepath.Join(tempDir, "delivery.zip")

	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, rel := range changed {
		if err := addToZip(zw, root, rel); err != nil {
			zw.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	return archivePath, nil
}

func addToZip(zw *zip.Writer, root, rel string) error {
	src, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	defer src.Close()

	w, err := zw.Create(rel)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", rel, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write zip entry %s: %w", rel, err)
	}
	return nil
}
