// Package export provides channel transcript export in PDF and HTML formats.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Request contains parameters for an export operation
type Request struct {
	ChannelID string
	Format    Format
}

// ChannelInfo holds channel metadata for the transcript header
type ChannelInfo struct {
	ID          string
	Title       string
	Description string
	Topics      []string
}

// RootInfo holds one conversation root and its replies
type RootInfo struct {
	Author   string
	Content  string
	PostedAt time.Time
	Deleted  bool
	Replies  []ReplyInfo
}

// ReplyInfo holds one reply in a conversation
type ReplyInfo struct {
	Author   string
	Content  string
	PostedAt time.Time
	Orphaned bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
