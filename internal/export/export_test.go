package export

import (
	"context"
	"html/template"
	"strings"
	"testing"
	"time"
)

type fakeExportStore struct {
	channel ChannelInfo
	roots   []RootInfo
}

func (f *fakeExportStore) GetChannel(ctx context.Context, channelID string) (ChannelInfo, error) {
	return f.channel, nil
}

func (f *fakeExportStore) ListThreadRoots(ctx context.Context, channelID string) ([]RootInfo, error) {
	return f.roots, nil
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Channel v1.2", "My-Channel-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "channel"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"", ""},                               // Empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderTranscriptHTML(t *testing.T) {
	posted := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	data := TemplateData{
		Title:       "Release Planning",
		Description: "Coordinating the next release",
		Topics:      []string{"planning", "releases"},
		ExportedAt:  posted,
		Roots: []TemplateRoot{
			{
				Author:   "Ada",
				Content:  template.HTML("<p>Proposed cut date is Friday.</p>"),
				PostedAt: posted,
				Replies: []TemplateReply{
					{
						Author:   "Grace",
						Content:  template.HTML("<p>Works for me.</p>"),
						PostedAt: posted.Add(time.Hour),
					},
				},
			},
			{
				Author:   "Deleted message",
				Content:  template.HTML("Message has been deleted."),
				PostedAt: posted,
				Deleted:  true,
				Replies: []TemplateReply{
					{
						Author:   "Linus",
						Content:  template.HTML("<p>Still relevant context here.</p>"),
						PostedAt: posted.Add(2 * time.Hour),
						Orphaned: true,
					},
				},
			},
		},
	}

	html, err := RenderTranscriptHTML(data)
	if err != nil {
		t.Fatalf("RenderTranscriptHTML() error = %v", err)
	}

	if !strings.Contains(html, "Release Planning") {
		t.Error("HTML missing channel title")
	}
	if !strings.Contains(html, "Coordinating the next release") {
		t.Error("HTML missing channel description")
	}
	if !strings.Contains(html, "planning") {
		t.Error("HTML missing topic tags")
	}
	if !strings.Contains(html, "Works for me") {
		t.Error("HTML missing reply content")
	}
	if !strings.Contains(html, "Message has been deleted.") {
		t.Error("HTML missing deleted placeholder")
	}

	// Message content is stored pre-sanitized, so it must render as raw HTML
	if strings.Contains(html, "&lt;p&gt;") {
		t.Error("message content was escaped - should be rendered as raw HTML")
	}
	if !strings.Contains(html, "<p>Proposed cut date is Friday.</p>") {
		t.Error("HTML content should contain unescaped <p> tags")
	}
}

func TestExportHTMLFormat(t *testing.T) {
	posted := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	svc := NewService(&fakeExportStore{
		channel: ChannelInfo{
			ID:          "ch_1",
			Title:       "General",
			Description: "Anything goes",
		},
		roots: []RootInfo{
			{Author: "Ada", Content: "<p>Hello there.</p>", PostedAt: posted},
		},
	})

	result, err := svc.Export(context.Background(), Request{ChannelID: "ch_1", Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if result.Filename != "General.html" {
		t.Errorf("Filename = %q, want %q", result.Filename, "General.html")
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("MimeType = %q", result.MimeType)
	}
	if !strings.Contains(string(result.Data), "<p>Hello there.</p>") {
		t.Error("exported HTML missing message content")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(&fakeExportStore{channel: ChannelInfo{ID: "ch_1", Title: "General"}})

	_, err := svc.Export(context.Background(), Request{ChannelID: "ch_1", Format: Format("epub")})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
