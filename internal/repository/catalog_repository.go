package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
)

// catalogRecord mirrors one element of the catalog file. Pointers let the
// validator tell a missing field apart from an empty one.
type catalogRecord struct {
	ID    json.RawMessage `json:"id" validate:"required"`
	Title *string         `json:"title" validate:"required"`
}

// CatalogRepository is the read-only, in-memory batch catalog.
type CatalogRepository struct {
	order  []string
	titles map[string]string
}

// LoadCatalogFile reads and indexes the catalog file at path.
func LoadCatalogFile(path string) (*CatalogRepository, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedCatalog.Code, appErrors.ErrMalformedCatalog.Status, "open catalog file")
	}
	defer file.Close() //nolint:errcheck
	return LoadCatalog(file)
}

// LoadCatalog parses a JSON array of {id, title} records.
func LoadCatalog(r io.Reader) (*CatalogRepository, error) {
	var records []catalogRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, malformed(fmt.Errorf("decode catalog: %w", err))
	}

	validate := validator.New()
	repo := &CatalogRepository{
		order:  make([]string, 0, len(records)),
		titles: make(map[string]string, len(records)),
	}
	for i, record := range records {
		if err := validate.Struct(record); err != nil {
			return nil, malformed(fmt.Errorf("record %d: %w", i, err))
		}
		id, err := normaliseID(record.ID)
		if err != nil {
			return nil, malformed(fmt.Errorf("record %d: %w", i, err))
		}
		if _, exists := repo.titles[id]; !exists {
			repo.order = append(repo.order, id)
		}
		repo.titles[id] = *record.Title
	}
	return repo, nil
}

// NewCatalogRepository indexes records already in memory; later duplicates
// replace the title but keep the first position.
func NewCatalogRepository(records []models.BatchRecord) *CatalogRepository {
	repo := &CatalogRepository{
		order:  make([]string, 0, len(records)),
		titles: make(map[string]string, len(records)),
	}
	for _, record := range records {
		if _, exists := repo.titles[record.ID]; !exists {
			repo.order = append(repo.order, record.ID)
		}
		repo.titles[record.ID] = record.Title
	}
	return repo
}

// Search returns every record whose title contains term, ignoring case, in
// catalog order. An empty term matches everything.
func (r *CatalogRepository) Search(term string) []models.BatchRecord {
	needle := strings.ToLower(term)
	matches := make([]models.BatchRecord, 0)
	for _, id := range r.order {
		title := r.titles[id]
		if strings.Contains(strings.ToLower(title), needle) {
			matches = append(matches, models.BatchRecord{ID: id, Title: title})
		}
	}
	return matches
}

// Get looks up a record by id.
func (r *CatalogRepository) Get(id string) (models.BatchRecord, bool) {
	title, ok := r.titles[id]
	if !ok {
		return models.BatchRecord{}, false
	}
	return models.BatchRecord{ID: id, Title: title}, true
}

// Len returns the number of distinct records.
func (r *CatalogRepository) Len() int {
	return len(r.order)
}

func normaliseID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("id is required")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("decode id: %w", err)
		}
		if s == "" {
			return "", fmt.Errorf("id is empty")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number")
	}
	return n.String(), nil
}

func malformed(err error) error {
	return appErrors.Wrap(err, appErrors.ErrMalformedCatalog.Code, appErrors.ErrMalformedCatalog.Status, appErrors.ErrMalformedCatalog.Message)
}
