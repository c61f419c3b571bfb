package types

import "time"

// IndexedDocument is the unit persisted by the embedding store and served
// by the search engine.
type IndexedDocument struct {
	ID          string           `json:"id"`
	Embedding   []float32        `json:"embedding"`
	PageContent string           `json:"pageContent"`
	Metadata    DocumentMetadata `json:"metadata"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// HasEmbedding reports whether a vector was generated for the document.
func (d IndexedDocument) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// DocumentMetadata carries the bookmark fields shown to the user.
type DocumentMetadata struct {
	BookmarkID   string    `json:"bookmarkId"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	FolderPath   string    `json:"folderPath"`
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// StoreStats summarises the persistent store.
type StoreStats struct {
	Count            int       `json:"count"`
	LastUpdated      time.Time `json:"lastUpdated"`
	MissingEmbedding int       `json:"missingEmbedding"`
}

// ComputeStoreStats derives StoreStats from a full document set.
func ComputeStoreStats(docs []IndexedDocument) StoreStats {
	stats := StoreStats{Count: len(docs)}
	for _, doc := range docs {
		if !doc.HasEmbedding() {
			stats.MissingEmbedding++
		}
		if doc.LastUpdated.After(stats.LastUpdated) {
			stats.LastUpdated = doc.LastUpdated
		}
	}
	return stats
}
