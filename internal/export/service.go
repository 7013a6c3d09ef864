package export

import (
	"context"
	"fmt"
	"html/template"
	"time"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetChannel(ctx context.Context, channelID string) (ChannelInfo, error)
	ListThreadRoots(ctx context.Context, channelID string) ([]RootInfo, error)
}

// Service provides channel transcript export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a transcript in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	channel, err := s.store.GetChannel(ctx, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}

	roots, err := s.store.ListThreadRoots(ctx, req.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("list thread roots: %w", err)
	}

	data := TemplateData{
		Title:       channel.Title,
		Description: channel.Description,
		Topics:      channel.Topics,
		ExportedAt:  time.Now(),
		Roots:       []TemplateRoot{},
	}

	for _, root := range roots {
		tr := TemplateRoot{
			Author:   root.Author,
			Content:  template.HTML(root.Content),
			PostedAt: root.PostedAt,
			Deleted:  root.Deleted,
			Replies:  []TemplateReply{},
		}
		for _, reply := range root.Replies {
			tr.Replies = append(tr.Replies, TemplateReply{
				Author:   reply.Author,
				Content:  template.HTML(reply.Content),
				PostedAt: reply.PostedAt,
				Orphaned: reply.Orphaned,
			})
		}
		data.Roots = append(data.Roots, tr)
	}

	html, err := RenderTranscriptHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, channel.Title)
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(channel.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
