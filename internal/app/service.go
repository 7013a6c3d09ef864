package app

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"agora/api/internal/auth"
	"agora/api/internal/authpw"
	"agora/api/internal/config"
	"agora/api/internal/email"
	"agora/api/internal/export"
	"agora/api/internal/rbac"
	"agora/api/internal/sanitize"
	"agora/api/internal/search"
	"agora/api/internal/session"
	"agora/api/internal/store"
	"agora/api/internal/thread"
	"agora/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	IsExternal   bool
	JTI          string
	ExpiresAt    time.Time
}

type MessageInput struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
	IsDraft  bool   `json:"isDraft"`
}

type UpdateMessageInput struct {
	Content *string `json:"content"`
	Publish bool    `json:"publish"`
}

type ChannelInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

type dataStore interface {
	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	ListChannels(context.Context) ([]store.Channel, error)
	GetChannel(context.Context, string) (store.Channel, error)
	ChannelExists(context.Context, string) (bool, error)
	InsertChannel(context.Context, store.Channel) error
	UpdateChannel(context.Context, string, string, string, []string) error
	DeleteChannel(context.Context, string) error
	ChannelMessageCount(context.Context, string) (int, error)
	ListMessages(context.Context, string) ([]store.Message, error)
	GetMessage(context.Context, string, string) (store.Message, error)
	UpsertDraft(context.Context, store.Message) (store.Message, error)
	InsertPublishedMessage(context.Context, store.Message) (store.Message, error)
	PublishMessage(context.Context, string, string, string) (bool, error)
	UpdateDraftContent(context.Context, string, string, string) (bool, error)
	EditPublishedMessage(context.Context, string, string, string, string, string) (bool, error)
	DeleteMessage(context.Context, string, string) (bool, error)
	ListMessageRevisions(context.Context, string) ([]store.MessageRevision, error)
	SummaryCounts(context.Context) (int, int, int, error)
	Ping(ctx context.Context) error
}

// refreshSessionStore is the subset of storage used for refresh tokens. It is
// satisfied by both the Postgres store and the Redis session store.
type refreshSessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshSessionStore
	search   *search.Service
	authpw   *authpw.Service
	email    *email.Service
	export   *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service) *Service {
	return newService(cfg, dataStore, dataStore, searchService)
}

// NewWithSessionStore keeps refresh tokens in Redis instead of Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, searchService *search.Service) *Service {
	return newService(cfg, dataStore, sessions, searchService)
}

func newService(cfg config.Config, dataStore *store.PostgresStore, sessions refreshSessionStore, searchService *search.Service) *Service {
	s := &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   searchService,
		authpw:   authpw.NewService(dataStore, cfg.JWTSecret),
		email: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}
	s.export = export.NewService(&exportStore{service: s})
	return s
}

// AuthPasswordService returns the email/password auth service.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// SMTPConfigured reports whether outgoing email is available.
func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) EmailService() *email.Service {
	return s.email
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Bootstrap(ctx context.Context) error {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		return err
	}
	if len(channels) > 0 {
		return nil
	}

	owner, err := s.store.EnsureUserByName(ctx, "Avery")
	if err != nil {
		return err
	}

	seeds := []store.Channel{
		{
			ID:          "ch_general",
			Title:       "General",
			Description: "Team-wide announcements and open discussion.",
			Topics:      []string{"announcements", "watercooler"},
			CreatedBy:   owner.DisplayName,
		},
		{
			ID:          "ch_api_design",
			Title:       "API Design",
			Description: "Proposals and review threads for public API changes.",
			Topics:      []string{"api", "design-review"},
			CreatedBy:   owner.DisplayName,
		},
	}
	for _, seed := range seeds {
		if err := s.store.InsertChannel(ctx, seed); err != nil {
			return err
		}
	}

	root, err := s.store.InsertPublishedMessage(ctx, store.Message{
		ID:        util.NewID("msg"),
		ChannelID: "ch_api_design",
		AuthorID:  owner.ID,
		Content:   "<p>Kicking off the rate limit header discussion. Current draft proposes <code>Retry-After</code> plus a quota header.</p>",
	})
	if err != nil {
		return err
	}

	reviewer, err := s.store.EnsureUserByName(ctx, "Marcus K.")
	if err != nil {
		return err
	}
	if _, err := s.store.InsertPublishedMessage(ctx, store.Message{
		ID:        util.NewID("msg"),
		ChannelID: "ch_api_design",
		ParentID:  &root.ID,
		AuthorID:  reviewer.ID,
		Content:   "<p>Quota header needs a unit in the name, otherwise clients will guess.</p>",
	}); err != nil {
		return err
	}

	if _, err := s.store.UpsertDraft(ctx, store.Message{
		ID:        util.NewID("msg"),
		ChannelID: "ch_general",
		AuthorID:  owner.ID,
		Content:   "<p>Draft: welcome post for new team members.</p>",
	}); err != nil {
		return err
	}

	s.search.ReindexAllFromPG(ctx)
	return nil
}

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(ctx, user)
}

// CreateSession issues a session for an already-authenticated user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		IsExternal:   user.IsExternal,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:      token,
		UserID:     user.ID,
		UserName:   user.DisplayName,
		Role:       user.Role,
		IsExternal: user.IsExternal,
		JTI:        claims.JTI,
		ExpiresAt:  time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

var topicPalette = []string{
	"#2563eb", "#7c3aed", "#db2777", "#ea580c",
	"#ca8a04", "#16a34a", "#0d9488", "#475569",
}

// topicColor derives a stable color for a tag. Colors are never stored; the
// same tag always hashes to the same palette entry.
func topicColor(tag string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(tag))))
	return topicPalette[int(sum[0])%len(topicPalette)]
}

func topicPayloads(topics []string) []map[string]any {
	items := make([]map[string]any, 0, len(topics))
	for _, topic := range topics {
		items = append(items, map[string]any{
			"name":  topic,
			"color": topicColor(topic),
		})
	}
	return items
}

func channelPayload(channel store.Channel) map[string]any {
	var lastPostAt any
	if channel.LastPostAt != nil {
		lastPostAt = channel.LastPostAt.Format(time.RFC3339)
	}
	return map[string]any{
		"id":           channel.ID,
		"title":        channel.Title,
		"description":  channel.Description,
		"topics":       topicPayloads(channel.Topics),
		"createdBy":    channel.CreatedBy,
		"createdAt":    channel.CreatedAt.Format(time.RFC3339),
		"updatedAt":    channel.UpdatedAt.Format(time.RFC3339),
		"messageCount": channel.MessageCount,
		"lastPostAt":   lastPostAt,
	}
}

func messagePayload(message store.Message) map[string]any {
	return map[string]any{
		"id":         message.ID,
		"channelId":  message.ChannelID,
		"parentId":   message.ParentID,
		"authorId":   message.AuthorID,
		"authorName": message.AuthorName,
		"content":    message.Content,
		"isDraft":    message.IsDraft,
		"isOrphaned": message.IsOrphaned,
		"version":    message.Version,
		"createdAt":  message.CreatedAt.Format(time.RFC3339),
		"updatedAt":  message.UpdatedAt.Format(time.RFC3339),
	}
}

func rootPayload(root thread.Root) map[string]any {
	replies := make([]map[string]any, 0, len(root.Replies))
	for _, reply := range root.Replies {
		replies = append(replies, messagePayload(reply))
	}
	payload := messagePayload(root.Message)
	payload["placeholder"] = root.Placeholder
	payload["replies"] = replies
	return payload
}

func threadPayload(view thread.View) map[string]any {
	others := make([]map[string]any, 0, len(view.Others))
	for _, root := range view.Others {
		others = append(others, rootPayload(root))
	}
	var primary any
	if view.Primary != nil {
		primary = rootPayload(*view.Primary)
	}
	return map[string]any{
		"primary": primary,
		"others":  others,
	}
}

func (s *Service) ListChannels(ctx context.Context) (map[string]any, error) {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(channels))
	for _, channel := range channels {
		items = append(items, channelPayload(channel))
	}
	return map[string]any{"items": items}, nil
}

func (s *Service) GetChannel(ctx context.Context, channelID string) (map[string]any, error) {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return channelPayload(channel), nil
}

func normalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	result := make([]string, 0, len(topics))
	for _, topic := range topics {
		name := strings.TrimSpace(topic)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, name)
	}
	return result
}

func (s *Service) CreateChannel(ctx context.Context, input ChannelInput, userName string) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	channel := store.Channel{
		ID:          util.NewID("ch"),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Topics:      normalizeTopics(input.Topics),
		CreatedBy:   userName,
	}
	if err := s.store.InsertChannel(ctx, channel); err != nil {
		return nil, err
	}
	s.search.IndexChannel(search.ChannelRecord{
		ID:          channel.ID,
		Title:       channel.Title,
		Description: channel.Description,
	})
	return s.GetChannel(ctx, channel.ID)
}

func (s *Service) UpdateChannel(ctx context.Context, channelID string, input ChannelInput) (map[string]any, error) {
	current, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = current.Title
	}
	description := strings.TrimSpace(input.Description)
	topics := current.Topics
	if input.Topics != nil {
		topics = normalizeTopics(input.Topics)
	}
	if err := s.store.UpdateChannel(ctx, channelID, title, description, topics); err != nil {
		return nil, err
	}
	s.search.IndexChannel(search.ChannelRecord{
		ID:          channelID,
		Title:       title,
		Description: description,
	})
	return s.GetChannel(ctx, channelID)
}

func (s *Service) DeleteChannel(ctx context.Context, channelID string) (map[string]any, error) {
	if _, err := s.store.GetChannel(ctx, channelID); err != nil {
		return nil, err
	}
	count, err := s.store.ChannelMessageCount(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domainError(http.StatusConflict, "CONFLICT", "channel still contains messages", map[string]any{
			"messages": count,
		})
	}
	if err := s.store.DeleteChannel(ctx, channelID); err != nil {
		return nil, err
	}
	s.search.DeleteChannel(channelID)
	return map[string]any{"ok": true}, nil
}

// GetChannelView returns the channel, its reconstructed two-level thread view
// over published messages, and optionally the viewer's own drafts. Other
// authors' drafts are never included.
func (s *Service) GetChannelView(ctx context.Context, channelID string, viewer Session, includeDrafts bool) (map[string]any, error) {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, channelID)
	if err != nil {
		return nil, err
	}

	published := make([]store.Message, 0, len(messages))
	drafts := make([]map[string]any, 0)
	for _, message := range messages {
		if message.IsDraft {
			if includeDrafts && message.AuthorID == viewer.UserID {
				drafts = append(drafts, messagePayload(message))
			}
			continue
		}
		published = append(published, message)
	}

	view := thread.Reconstruct(published)
	return map[string]any{
		"channel": channelPayload(channel),
		"thread":  threadPayload(view),
		"drafts":  drafts,
	}, nil
}

// validateParent enforces the two-level thread shape: replies may target only
// published, non-orphaned roots in the same channel.
func (s *Service) validateParent(ctx context.Context, channelID, parentID string) error {
	parent, err := s.store.GetMessage(ctx, channelID, parentID)
	if err != nil {
		return err
	}
	if parent.IsDraft {
		// Drafts are invisible to everyone but their author.
		return sql.ErrNoRows
	}
	if parent.ParentID != nil {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "replies cannot target another reply", nil)
	}
	if parent.IsOrphaned {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot reply to an orphaned message", nil)
	}
	return nil
}

// CreateMessage saves a draft or posts a published message in one call,
// depending on input.IsDraft.
func (s *Service) CreateMessage(ctx context.Context, channelID string, input MessageInput, session Session) (map[string]any, error) {
	exists, err := s.store.ChannelExists(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, sql.ErrNoRows
	}

	content := sanitize.Sanitize(input.Content)
	if sanitize.IsEmpty(content) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is empty after sanitizing", nil)
	}

	parentID := strings.TrimSpace(input.ParentID)
	var parentRef *string
	if parentID != "" {
		if err := s.validateParent(ctx, channelID, parentID); err != nil {
			return nil, err
		}
		parentRef = &parentID
	}

	message := store.Message{
		ID:        util.NewID("msg"),
		ChannelID: channelID,
		ParentID:  parentRef,
		AuthorID:  session.UserID,
		Content:   content,
	}

	if input.IsDraft {
		saved, err := s.store.UpsertDraft(ctx, message)
		if err != nil {
			return nil, err
		}
		return messagePayload(saved), nil
	}

	saved, err := s.store.InsertPublishedMessage(ctx, message)
	if err != nil {
		return nil, err
	}
	s.indexMessage(saved)
	return messagePayload(saved), nil
}

// UpdateMessage edits a draft, publishes a draft, or edits a published
// message, depending on the row's state and the input flags.
func (s *Service) UpdateMessage(ctx context.Context, channelID, messageID string, input UpdateMessageInput, session Session) (map[string]any, error) {
	message, err := s.store.GetMessage(ctx, channelID, messageID)
	if err != nil {
		return nil, err
	}

	if message.IsDraft {
		return s.updateDraft(ctx, message, input, session)
	}

	if input.Publish {
		return nil, domainError(http.StatusConflict, "CONFLICT", "message is already published", nil)
	}
	if message.AuthorID != session.UserID {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only the author can edit a message", nil)
	}
	if input.Content == nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	content := sanitize.Sanitize(*input.Content)
	if sanitize.IsEmpty(content) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is empty after sanitizing", nil)
	}

	changed, err := s.store.EditPublishedMessage(ctx, channelID, messageID, content, message.Content, session.UserName)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, sql.ErrNoRows
	}

	updated, err := s.store.GetMessage(ctx, channelID, messageID)
	if err != nil {
		return nil, err
	}
	s.indexMessage(updated)
	return messagePayload(updated), nil
}

func (s *Service) updateDraft(ctx context.Context, draft store.Message, input UpdateMessageInput, session Session) (map[string]any, error) {
	if draft.AuthorID != session.UserID {
		// Drafts are private; do not reveal their existence.
		return nil, sql.ErrNoRows
	}

	content := draft.Content
	if input.Content != nil {
		content = sanitize.Sanitize(*input.Content)
		if sanitize.IsEmpty(content) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is empty after sanitizing", nil)
		}
	}

	if input.Publish {
		if draft.ParentID != nil {
			if err := s.validateParent(ctx, draft.ChannelID, *draft.ParentID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, domainError(http.StatusConflict, "CONFLICT", "parent message no longer exists", nil)
				}
				var domainErr *DomainError
				if errors.As(err, &domainErr) {
					return nil, domainError(http.StatusConflict, "CONFLICT", "parent message can no longer accept replies", nil)
				}
				return nil, err
			}
		}
		published, err := s.store.PublishMessage(ctx, draft.ChannelID, draft.ID, content)
		if err != nil {
			return nil, err
		}
		if !published {
			return nil, domainError(http.StatusConflict, "CONFLICT", "draft was already published", nil)
		}
		updated, err := s.store.GetMessage(ctx, draft.ChannelID, draft.ID)
		if err != nil {
			return nil, err
		}
		s.indexMessage(updated)
		return messagePayload(updated), nil
	}

	changed, err := s.store.UpdateDraftContent(ctx, draft.ChannelID, draft.ID, content)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, sql.ErrNoRows
	}
	updated, err := s.store.GetMessage(ctx, draft.ChannelID, draft.ID)
	if err != nil {
		return nil, err
	}
	return messagePayload(updated), nil
}

// DeleteMessage removes a message and orphans its replies. Authorship rules
// are strict: only the author may delete, regardless of role.
func (s *Service) DeleteMessage(ctx context.Context, channelID, messageID string, session Session) (map[string]any, error) {
	message, err := s.store.GetMessage(ctx, channelID, messageID)
	if err != nil {
		return nil, err
	}
	if message.IsDraft && message.AuthorID != session.UserID {
		return nil, sql.ErrNoRows
	}
	if message.AuthorID != session.UserID {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only the author can delete a message", nil)
	}

	deleted, err := s.store.DeleteMessage(ctx, channelID, messageID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, sql.ErrNoRows
	}
	s.search.DeleteMessage(messageID)
	return map[string]any{"ok": true}, nil
}

// ListRevisions returns the edit history of a published message, visible to
// the author and to moderators.
func (s *Service) ListRevisions(ctx context.Context, channelID, messageID string, session Session) (map[string]any, error) {
	message, err := s.store.GetMessage(ctx, channelID, messageID)
	if err != nil {
		return nil, err
	}
	if message.IsDraft {
		return nil, sql.ErrNoRows
	}
	if message.AuthorID != session.UserID && !s.Can(session.Role, rbac.ActionModerate) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	revisions, err := s.store.ListMessageRevisions(ctx, messageID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(revisions))
	for _, revision := range revisions {
		items = append(items, map[string]any{
			"id":        revision.ID,
			"messageId": revision.MessageID,
			"version":   revision.Version,
			"content":   revision.Content,
			"editedBy":  revision.EditedBy,
			"editedAt":  revision.EditedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{
		"messageId":      messageID,
		"currentVersion": message.Version,
		"items":          items,
	}, nil
}

func (s *Service) Search(ctx context.Context, text, filterType, channelID string, limit, offset int) (search.Response, error) {
	resultType := search.ResultType(strings.ToLower(strings.TrimSpace(filterType)))
	switch resultType {
	case "", search.ResultChannel, search.ResultMessage:
	default:
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be 'channel' or 'message'", nil)
	}
	return s.search.Search(search.Query{
		Text:            text,
		FilterType:      resultType,
		FilterChannelID: strings.TrimSpace(channelID),
		Limit:           limit,
		Offset:          offset,
	}), nil
}

func (s *Service) ExportChannel(ctx context.Context, req export.Request) (*export.Result, error) {
	return s.export.Export(ctx, req)
}

func (s *Service) Summary(ctx context.Context) (map[string]any, error) {
	channels, published, drafts, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"channels":          channels,
		"publishedMessages": published,
		"drafts":            drafts,
	}, nil
}

func (s *Service) indexMessage(message store.Message) {
	if message.IsDraft {
		return
	}
	s.search.IndexMessage(search.MessageRecord{
		ID:         message.ID,
		ChannelID:  message.ChannelID,
		AuthorName: message.AuthorName,
		Content:    message.Content,
	})
}

// exportStore adapts the service's data to the export package.
type exportStore struct {
	service *Service
}

func (e *exportStore) GetChannel(ctx context.Context, channelID string) (export.ChannelInfo, error) {
	channel, err := e.service.store.GetChannel(ctx, channelID)
	if err != nil {
		return export.ChannelInfo{}, err
	}
	return export.ChannelInfo{
		ID:          channel.ID,
		Title:       channel.Title,
		Description: channel.Description,
		Topics:      channel.Topics,
	}, nil
}

func (e *exportStore) ListThreadRoots(ctx context.Context, channelID string) ([]export.RootInfo, error) {
	messages, err := e.service.store.ListMessages(ctx, channelID)
	if err != nil {
		return nil, err
	}
	published := make([]store.Message, 0, len(messages))
	for _, message := range messages {
		if !message.IsDraft {
			published = append(published, message)
		}
	}
	view := thread.Reconstruct(published)

	var roots []thread.Root
	if view.Primary != nil {
		roots = append(roots, *view.Primary)
	}
	roots = append(roots, view.Others...)

	items := make([]export.RootInfo, 0, len(roots))
	for _, root := range roots {
		info := export.RootInfo{
			Author:   root.Message.AuthorName,
			Content:  root.Message.Content,
			PostedAt: root.Message.CreatedAt,
			Deleted:  root.Placeholder,
		}
		if root.Placeholder {
			info.Author = thread.PlaceholderAuthor
		}
		for _, reply := range root.Replies {
			info.Replies = append(info.Replies, export.ReplyInfo{
				Author:   reply.AuthorName,
				Content:  reply.Content,
				PostedAt: reply.CreatedAt,
				Orphaned: reply.IsOrphaned,
			})
		}
		items = append(items, info)
	}
	return items, nil
}
