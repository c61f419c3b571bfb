package types

type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// IndexSummary reports the outcome of an indexing pass.
type IndexSummary struct {
	New       int  `json:"new"`
	Stale     int  `json:"stale"`
	Unchanged int  `json:"unchanged"`
	Embedded  int  `json:"embedded"`
	Total     int  `json:"total"`
	Declined  bool `json:"declined"`
}
