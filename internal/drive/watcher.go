package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DownloadOptions controls how sales sheets are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader pulls the sales sheets of one folder to local CSV files.
type Downloader struct {
	source Source
}

func NewDownloader(s Source) *Downloader {
	return &Downloader{source: s}
}

// DownloadFolderCSV downloads every sales sheet of the folder into
// DownloadDir and returns the local CSV paths. XLSX workbooks are converted
// through their first sheet and Google Sheets are exported as CSV.
func (d *Downloader) DownloadFolderCSV(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ingestible(f) {
			continue
		}

		name := filepath.Base(f.LocalName())
		localPath := filepath.Join(opts.DownloadDir, name)
		if err := d.download(ctx, f, localPath); err != nil {
			return nil, err
		}

		if strings.ToLower(filepath.Ext(name)) != ".xlsx" {
			localPaths = append(localPaths, localPath)
			continue
		}

		csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
		if err := convertXLSXToCSV(localPath, csvPath); err != nil {
			return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
		}
		_ = os.Remove(localPath)
		localPaths = append(localPaths, csvPath)
	}

	return localPaths, nil
}

func (d *Downloader) download(ctx context.Context, f *File, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", path, err)
	}
	defer out.Close()

	if err := d.source.DownloadFile(ctx, f, out); err != nil {
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	return nil
}
