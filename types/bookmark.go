package types

import "time"

// BookmarkNode is a node of the host-supplied bookmark tree. A node with a
// URL is a leaf; a node without one is a folder.
type BookmarkNode struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	URL      string            `json:"url,omitempty"`
	Children []BookmarkNode    `json:"children,omitempty"`
	Extended *BookmarkExtended `json:"extended,omitempty"`
}

// BookmarkExtended holds optional metadata attached to a bookmark.
type BookmarkExtended struct {
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n BookmarkNode) IsFolder() bool {
	return n.URL == ""
}

// FlattenedBookmark is a leaf annotated with its resolved folder path.
type FlattenedBookmark struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	FolderPath   string    `json:"folderPath"`
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	LastModified time.Time `json:"lastModified"`
}
