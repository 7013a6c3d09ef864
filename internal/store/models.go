package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsExternal            bool
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Channel struct {
	ID           string
	Title        string
	Description  string
	Topics       []string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	LastPostAt   *time.Time
}

type Message struct {
	ID         string
	ChannelID  string
	ParentID   *string
	AuthorID   string
	AuthorName string
	Content    string
	IsDraft    bool
	IsOrphaned bool
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type MessageRevision struct {
	ID        int64
	MessageID string
	Version   int
	Content   string
	EditedBy  string
	EditedAt  time.Time
}
