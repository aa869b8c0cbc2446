// internal/tree/types.go
package tree

import (
	"keep/internal/commit"
)

const (
	NodeDir  = "dir"
	NodeFile = "file"
)

// Node is one entry of a materialized directory listing
type Node struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// FileMetadata describes a resolved file at a branch head. Content is
// populated for textual files, and for binary files only when raw
// retrieval was requested.
type FileMetadata struct {
	Path      string      `json:"path"`
	Kind      commit.Kind `json:"kind"`
	ContentID string      `json:"content_id"`
	Size      int64       `json:"size"`
	Binary    bool        `json:"binary"`
	Content   []byte      `json:"content,omitempty"`
}

// readmeCandidates is the probe order for ResolveReadme. First match
// wins.
var readmeCandidates = []string{
	"README.md",
	"readme.md",
	"Readme.md",
	"README.markdown",
	"README.txt",
	"readme.txt",
}

// binaryExtensions is the allow-list used to infer binary-ness
var binaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico", ".bmp",
	".zip", ".gz", ".zst", ".xz", ".bz2", ".tar", ".jar",
	".mp3", ".mp4", ".avi", ".mkv", ".wav",
	".pdf", ".docx", ".xlsx", ".pptx",
	".exe", ".dll", ".so", ".dylib", ".bin", ".class", ".o",
}
