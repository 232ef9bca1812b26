package drive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository"
	"github.com/andresuchdata/dairyplan/backend-go/internal/sales"
)

// IngestResult reports one imported sales sheet.
type IngestResult struct {
	FileID   string   `json:"file_id"`
	Name     string   `json:"name"`
	Records  int      `json:"records"`
	Warnings []string `json:"warnings"`
}

type IngestService struct {
	source Source
	repo   repository.SalesRepository
}

func NewIngestService(source Source, repo repository.SalesRepository) *IngestService {
	return &IngestService{
		source: source,
		repo:   repo,
	}
}

// IngestFile downloads one CSV, XLSX or Google Sheet, validates it as a
// sales table and stores its records.
func (s *IngestService) IngestFile(ctx context.Context, fileID string) (*IngestResult, error) {
	file, err := s.source.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, file)
}

func (s *IngestService) ingest(ctx context.Context, file *File) (*IngestResult, error) {
	var buf bytes.Buffer
	if err := s.source.DownloadFile(ctx, file, &buf); err != nil {
		return nil, err
	}

	table, err := sales.Read(file.LocalName(), &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrValidation, file.Name, err)
	}
	report := sales.Validate(table)
	if !report.Valid {
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrValidation, file.Name, strings.Join(report.Errors, "; "))
	}
	records, err := sales.Parse(table)
	if err != nil {
		return nil, err
	}

	n, err := s.repo.InsertSales(ctx, sales.Preprocess(records))
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", file.Name, err)
	}

	log.Info().Str("file", file.Name).Int("records", n).Msg("sales sheet ingested")
	return &IngestResult{FileID: file.ID, Name: file.Name, Records: n, Warnings: report.Warnings}, nil
}

// IngestFolder ingests every sales sheet in a folder. A failing file is
// reported and does not stop the others.
func (s *IngestService) IngestFolder(ctx context.Context, folderID string) ([]domain.ItemResult, error) {
	files, err := s.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var results []domain.ItemResult
	for _, f := range files {
		if !ingestible(f) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := s.ingest(ctx, f)
		if err != nil {
			log.Error().Err(err).Str("file", f.Name).Msg("sales sheet ingest failed")
			results = append(results, domain.ItemResult{Key: f.Name, Success: false, Message: err.Error()})
			continue
		}
		results = append(results, domain.ItemResult{Key: f.Name, Success: true, Message: fmt.Sprintf("%d records ingested", res.Records)})
	}
	return results, nil
}

func ingestible(f *File) bool {
	if f.MimeType == sheetMimeType {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
