package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/zentala/bookmark-index/types"
)

// chromeEpochOffset is the distance in microseconds between 1601-01-01, the
// origin of Chrome profile timestamps, and the Unix epoch.
const chromeEpochOffset = 11644473600000000

type chromeBookmarksFile struct {
	Roots map[string]chromeNode `json:"roots"`
}

type chromeNode struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	URL          string       `json:"url"`
	DateModified string       `json:"date_modified"`
	DateAdded    string       `json:"date_added"`
	Children     []chromeNode `json:"children"`
}

// chromeRootOrder fixes the traversal order of the profile roots.
var chromeRootOrder = []string{"bookmark_bar", "other", "synced"}

// LoadBookmarkTree reads a bookmark tree from a JSON file. Three layouts are
// accepted: an array of nodes (the browser extension getTree shape), a
// single root node, or a Chrome profile "Bookmarks" file.
func LoadBookmarkTree(path string) ([]types.BookmarkNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmark file: %w", err)
	}
	return ParseBookmarkTree(data)
}

// ParseBookmarkTree decodes any of the layouts accepted by LoadBookmarkTree.
func ParseBookmarkTree(data []byte) ([]types.BookmarkNode, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("bookmark file is empty")
	}

	if trimmed[0] == '[' {
		var nodes []types.BookmarkNode
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return nil, fmt.Errorf("failed to decode bookmark tree: %w", err)
		}
		return nodes, nil
	}

	var chrome chromeBookmarksFile
	if err := json.Unmarshal(trimmed, &chrome); err == nil && len(chrome.Roots) > 0 {
		return convertChromeRoots(chrome.Roots), nil
	}

	var root types.BookmarkNode
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return nil, fmt.Errorf("failed to decode bookmark tree: %w", err)
	}
	return []types.BookmarkNode{root}, nil
}

func convertChromeRoots(roots map[string]chromeNode) []types.BookmarkNode {
	nodes := make([]types.BookmarkNode, 0, len(roots))
	for _, key := range chromeRootOrder {
		if root, ok := roots[key]; ok {
			nodes = append(nodes, convertChromeNode(root))
		}
	}
	return nodes
}

func convertChromeNode(n chromeNode) types.BookmarkNode {
	node := types.BookmarkNode{
		ID:    n.ID,
		Title: n.Name,
	}
	if n.Type == "url" {
		node.URL = n.URL
		modified := parseChromeTime(n.DateModified)
		if modified.IsZero() {
			modified = parseChromeTime(n.DateAdded)
		}
		if !modified.IsZero() {
			node.Extended = &types.BookmarkExtended{LastModified: modified}
		}
		return node
	}
	for _, child := range n.Children {
		node.Children = append(node.Children, convertChromeNode(child))
	}
	return node
}

func parseChromeTime(value string) time.Time {
	if value == "" || value == "0" {
		return time.Time{}
	}
	micros, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMicro(micros - chromeEpochOffset).UTC()
}
