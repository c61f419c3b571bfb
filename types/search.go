package types

// RankedResult is a search hit with its score breakdown.
type RankedResult struct {
	ID                  string           `json:"id"`
	PageContent         string           `json:"pageContent"`
	Metadata            DocumentMetadata `json:"metadata"`
	CombinedScore       float64          `json:"combinedScore"`
	VectorScore         float64          `json:"vectorScore"`
	KeywordScore        float64          `json:"keywordScore"`
	TitleKeywordScore   float64          `json:"titleKeywordScore"`
	URLKeywordScore     float64          `json:"urlKeywordScore"`
	ContentKeywordScore float64          `json:"contentKeywordScore"`
	VectorWeight        float64          `json:"vectorWeight"`
	KeywordWeight       float64          `json:"keywordWeight"`
}

const (
	SearchModeHybrid  = "hybrid"
	SearchModeLexical = "lexical"
)

type SearchRequest struct {
	Query string `form:"q" json:"query"`
	K     int    `form:"k" json:"k,omitempty"`
	Mode  string `form:"mode" json:"mode,omitempty"`
}

type SearchResponse struct {
	Results []RankedResult `json:"results"`
}

type IndexRequest struct {
	Tree    []BookmarkNode `json:"tree"`
	Confirm bool           `json:"confirm"`
}

type RegenerateRequest struct {
	Confirm bool `json:"confirm"`
}
