package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository"
	"github.com/andresuchdata/dairyplan/backend-go/internal/sales"
)

const salesCSV = "Date,Company,Product,Quantity_Sold,Unit_Price\n" +
	"2024-01-01,Amul,Milk,100,50\n" +
	"2024-01-02,Amul,Milk,120,50\n"

type fakeSource struct {
	folders map[string][]*File
	bodies  map[string][]byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{folders: map[string][]*File{}, bodies: map[string][]byte{}}
}

func (s *fakeSource) add(folder string, f *File, body []byte) {
	s.folders[folder] = append(s.folders[folder], f)
	s.bodies[f.ID] = body
}

func (s *fakeSource) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	return s.folders[folderID], nil
}

func (s *fakeSource) GetFile(ctx context.Context, fileID string) (*File, error) {
	for _, files := range s.folders {
		for _, f := range files {
			if f.ID == fileID {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("file %s not found", fileID)
}

func (s *fakeSource) DownloadFile(ctx context.Context, file *File, w io.Writer) error {
	_, err := w.Write(s.bodies[file.ID])
	return err
}

func (s *fakeSource) FindFolderByPath(ctx context.Context, path string) (string, error) {
	if _, ok := s.folders[path]; !ok {
		return "", errors.New("folder not found: " + path)
	}
	return path, nil
}

type memoryRepo struct {
	records []domain.SalesRecord
	err     error
}

func (r *memoryRepo) EnsureSchema(ctx context.Context) error { return nil }

func (r *memoryRepo) InsertSales(ctx context.Context, records []domain.SalesRecord) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.records = append(r.records, records...)
	return len(records), nil
}

func (r *memoryRepo) ListSales(ctx context.Context, filter domain.SalesFilter) ([]domain.SalesRecord, error) {
	return r.records, nil
}

func (r *memoryRepo) ListProducts(ctx context.Context) ([]string, error) { return nil, nil }

var _ repository.SalesRepository = (*memoryRepo)(nil)

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Date", "Product", "Quantity_Sold", "Unit_Price"},
		{"2024-01-01", "Butter", 10, 200},
		{"2024-01-02", "Butter", 12, 200},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestIngestFile(t *testing.T) {
	src := newFakeSource()
	src.add("sales", &File{ID: "f1", Name: "jan.csv", MimeType: "text/csv"}, []byte(salesCSV))
	repo := &memoryRepo{}

	res, err := NewIngestService(src, repo).IngestFile(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, "jan.csv", res.Name)
	require.Len(t, repo.records, 2)
	assert.Equal(t, 6000.0, repo.records[1].Revenue)
	assert.Contains(t, res.Warnings, "Dataset covers less than 30 days. More data recommended for better forecasting.")
}

func TestIngestFileRejectsInvalidSheet(t *testing.T) {
	src := newFakeSource()
	src.add("sales", &File{ID: "bad", Name: "bad.csv"}, []byte("Date,Product\n2024-01-01,Milk\n"))
	repo := &memoryRepo{}

	_, err := NewIngestService(src, repo).IngestFile(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Empty(t, repo.records)
}

func TestIngestFolderIsolatesFailures(t *testing.T) {
	src := newFakeSource()
	src.add("sales", &File{ID: "f1", Name: "jan.csv"}, []byte(salesCSV))
	src.add("sales", &File{ID: "f2", Name: "notes.txt"}, []byte("ignored"))
	src.add("sales", &File{ID: "f3", Name: "broken.csv"}, []byte("Date,Product\n"))
	src.add("sales", &File{ID: "f4", Name: "feb", MimeType: sheetMimeType}, []byte(salesCSV))
	repo := &memoryRepo{}

	results, err := NewIngestService(src, repo).IngestFolder(context.Background(), "sales")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "broken.csv", results[1].Key)
	assert.True(t, results[2].Success)
	assert.Len(t, repo.records, 4)
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "feb.csv", (&File{Name: "feb", MimeType: sheetMimeType}).LocalName())
	assert.Equal(t, "feb.csv", (&File{Name: "feb.csv", MimeType: sheetMimeType}).LocalName())
	assert.Equal(t, "jan.xlsx", (&File{Name: "jan.xlsx"}).LocalName())
}

func TestDownloadFolderCSVConvertsWorkbooks(t *testing.T) {
	src := newFakeSource()
	src.add("sales", &File{ID: "f1", Name: "jan.csv"}, []byte(salesCSV))
	src.add("sales", &File{ID: "f2", Name: "butter.xlsx"}, workbook(t))
	src.add("sales", &File{ID: "f3", Name: "readme.md"}, []byte("#"))
	dir := t.TempDir()

	paths, err := NewDownloader(src).DownloadFolderCSV(context.Background(), DownloadOptions{FolderID: "sales", DownloadDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "jan.csv"), filepath.Join(dir, "butter.csv")}, paths)

	_, err = os.Stat(filepath.Join(dir, "butter.xlsx"))
	assert.True(t, os.IsNotExist(err))

	table, err := sales.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Product", "Quantity_Sold", "Unit_Price"}, table.Header)
	records, err := sales.Parse(table)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 12.0, records[1].QuantitySold)
}

func TestDownloadFolderCSVRequiresDir(t *testing.T) {
	_, err := NewDownloader(newFakeSource()).DownloadFolderCSV(context.Background(), DownloadOptions{})
	assert.Error(t, err)
}

func newTestRouter(src *fakeSource, repo *memoryRepo) *mux.Router {
	r := mux.NewRouter()
	NewHandler(src, NewIngestService(src, repo)).RegisterRoutes(r)
	return r
}

func TestHandlerListFiles(t *testing.T) {
	src := newFakeSource()
	src.add("sales", &File{ID: "f1", Name: "jan.csv"}, []byte(salesCSV))
	router := newTestRouter(src, &memoryRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=sales", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var files []File
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "f1", files[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/drive/files?path=missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerIngest(t *testing.T) {
	src := newFakeSource()
	src.add("sales", &File{ID: "f1", Name: "jan.csv"}, []byte(salesCSV))
	src.add("sales", &File{ID: "bad", Name: "bad.csv"}, []byte("Date\n"))
	repo := &memoryRepo{}
	router := newTestRouter(src, repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/ingest", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/ingest?fileId=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/ingest?fileId=f1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var res IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Records)

	repo.err = errors.New("db down")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/ingest?fileId=f1", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlerIngestFolder(t *testing.T) {
	src := newFakeSource()
	src.add("sales", &File{ID: "f1", Name: "jan.csv"}, []byte(salesCSV))
	router := newTestRouter(src, &memoryRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/drive/ingest/folder?folderId=sales", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []domain.ItemResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.True(t, body.Results[0].Success)
}
