package review

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-importer/internal/domain/categorization"
)

// HistoryDocument is a ledger transaction as indexed for operator search.
type HistoryDocument struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MerchantName string `json:"merchant_name"`
	CategoryID   string `json:"category_id"`
}

// HistoryHit is a search result with its relevance score.
type HistoryHit struct {
	Document HistoryDocument
	Score    float64
}

// HistoryIndex lets an operator search prior ledger activity while
// resolving a review item ("what did we call this merchant before, and
// where did it go?"). Backed by Bleve; in-memory unless a path is given.
type HistoryIndex struct {
	index   bleve.Index
	indexMu sync.RWMutex
}

// NewHistoryIndex creates or opens the search index. An empty path builds
// an in-memory index, which is what import runs and tests use.
func NewHistoryIndex(path string) (*HistoryIndex, error) {
	indexMapping := buildHistoryMapping()

	var (
		index bleve.Index
		err   error
	)
	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
		}
		index, err = bleve.New(path, indexMapping)
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &HistoryIndex{index: index}, nil
}

func buildHistoryMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("merchant_name", textFieldMapping)
	docMapping.AddFieldMappingsAt("category_id", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// IndexHistory (re)indexes ledger history entries in one batch.
func (hi *HistoryIndex) IndexHistory(entries []categorization.HistoryEntry) error {
	hi.indexMu.Lock()
	defer hi.indexMu.Unlock()

	batch := hi.index.NewBatch()
	for _, e := range entries {
		merchant := ""
		if e.MerchantName != nil {
			merchant = *e.MerchantName
		}
		categoryID := ""
		if e.CategoryID != nil {
			categoryID = e.CategoryID.String()
		}

		doc := HistoryDocument{
			ID:           e.ID.String(),
			Name:         e.Name,
			MerchantName: merchant,
			CategoryID:   categoryID,
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to index history entry %s: %w", e.ID, err)
		}
	}

	if err := hi.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// Search runs a full-text query over indexed history with typo tolerance.
func (hi *HistoryIndex) Search(query string, limit int) ([]HistoryHit, error) {
	hi.indexMu.RLock()
	defer hi.indexMu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"*"}

	searchResults, err := hi.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]HistoryHit, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		doc := HistoryDocument{ID: hit.ID}
		if v, ok := hit.Fields["name"].(string); ok {
			doc.Name = v
		}
		if v, ok := hit.Fields["merchant_name"].(string); ok {
			doc.MerchantName = v
		}
		if v, ok := hit.Fields["category_id"].(string); ok {
			doc.CategoryID = v
		}
		hits = append(hits, HistoryHit{Document: doc, Score: hit.Score})
	}
	return hits, nil
}

// CategoryFor returns the category id of an indexed entry, if any.
func (hi *HistoryIndex) CategoryFor(hit HistoryHit) (uuid.UUID, bool) {
	if hit.Document.CategoryID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(hit.Document.CategoryID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Close releases the index.
func (hi *HistoryIndex) Close() error {
	return hi.index.Close()
}
