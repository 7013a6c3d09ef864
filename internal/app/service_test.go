package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"agora/api/internal/config"
	"agora/api/internal/export"
	"agora/api/internal/search"
	"agora/api/internal/store"
)

type fakeStore struct {
	ensureUserByNameFn       func(context.Context, string) (store.User, error)
	getUserByIDFn            func(context.Context, string) (store.User, error)
	listChannelsFn           func(context.Context) ([]store.Channel, error)
	getChannelFn             func(context.Context, string) (store.Channel, error)
	channelExistsFn          func(context.Context, string) (bool, error)
	insertChannelFn          func(context.Context, store.Channel) error
	updateChannelFn          func(context.Context, string, string, string, []string) error
	deleteChannelFn          func(context.Context, string) error
	channelMessageCountFn    func(context.Context, string) (int, error)
	listMessagesFn           func(context.Context, string) ([]store.Message, error)
	getMessageFn             func(context.Context, string, string) (store.Message, error)
	upsertDraftFn            func(context.Context, store.Message) (store.Message, error)
	insertPublishedMessageFn func(context.Context, store.Message) (store.Message, error)
	publishMessageFn         func(context.Context, string, string, string) (bool, error)
	updateDraftContentFn     func(context.Context, string, string, string) (bool, error)
	editPublishedMessageFn   func(context.Context, string, string, string, string, string) (bool, error)
	deleteMessageFn          func(context.Context, string, string) (bool, error)
	listMessageRevisionsFn   func(context.Context, string) ([]store.MessageRevision, error)
	summaryCountsFn          func(context.Context) (int, int, int, error)
	pingFn                   func(context.Context) error
}

func (f *fakeStore) EnsureUserByName(ctx context.Context, userName string) (store.User, error) {
	if f.ensureUserByNameFn != nil {
		return f.ensureUserByNameFn(ctx, userName)
	}
	return store.User{}, nil
}
func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{}, nil
}
func (f *fakeStore) SaveRefreshSession(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) LookupRefreshSession(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(context.Context, string) error { return nil }
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error {
	return nil
}
func (f *fakeStore) IsAccessTokenRevoked(context.Context, string) (bool, error) { return false, nil }
func (f *fakeStore) ListChannels(ctx context.Context) ([]store.Channel, error) {
	if f.listChannelsFn != nil {
		return f.listChannelsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) GetChannel(ctx context.Context, channelID string) (store.Channel, error) {
	if f.getChannelFn != nil {
		return f.getChannelFn(ctx, channelID)
	}
	return store.Channel{ID: channelID, Title: "General", CreatedBy: "Avery"}, nil
}
func (f *fakeStore) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	if f.channelExistsFn != nil {
		return f.channelExistsFn(ctx, channelID)
	}
	return true, nil
}
func (f *fakeStore) InsertChannel(ctx context.Context, channel store.Channel) error {
	if f.insertChannelFn != nil {
		return f.insertChannelFn(ctx, channel)
	}
	return nil
}
func (f *fakeStore) UpdateChannel(ctx context.Context, channelID, title, description string, topics []string) error {
	if f.updateChannelFn != nil {
		return f.updateChannelFn(ctx, channelID, title, description, topics)
	}
	return nil
}
func (f *fakeStore) DeleteChannel(ctx context.Context, channelID string) error {
	if f.deleteChannelFn != nil {
		return f.deleteChannelFn(ctx, channelID)
	}
	return nil
}
func (f *fakeStore) ChannelMessageCount(ctx context.Context, channelID string) (int, error) {
	if f.channelMessageCountFn != nil {
		return f.channelMessageCountFn(ctx, channelID)
	}
	return 0, nil
}
func (f *fakeStore) ListMessages(ctx context.Context, channelID string) ([]store.Message, error) {
	if f.listMessagesFn != nil {
		return f.listMessagesFn(ctx, channelID)
	}
	return nil, nil
}
func (f *fakeStore) GetMessage(ctx context.Context, channelID, messageID string) (store.Message, error) {
	if f.getMessageFn != nil {
		return f.getMessageFn(ctx, channelID, messageID)
	}
	return store.Message{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertDraft(ctx context.Context, message store.Message) (store.Message, error) {
	if f.upsertDraftFn != nil {
		return f.upsertDraftFn(ctx, message)
	}
	message.IsDraft = true
	return message, nil
}
func (f *fakeStore) InsertPublishedMessage(ctx context.Context, message store.Message) (store.Message, error) {
	if f.insertPublishedMessageFn != nil {
		return f.insertPublishedMessageFn(ctx, message)
	}
	return message, nil
}
func (f *fakeStore) PublishMessage(ctx context.Context, channelID, messageID, content string) (bool, error) {
	if f.publishMessageFn != nil {
		return f.publishMessageFn(ctx, channelID, messageID, content)
	}
	return true, nil
}
func (f *fakeStore) UpdateDraftContent(ctx context.Context, channelID, messageID, content string) (bool, error) {
	if f.updateDraftContentFn != nil {
		return f.updateDraftContentFn(ctx, channelID, messageID, content)
	}
	return true, nil
}
func (f *fakeStore) EditPublishedMessage(ctx context.Context, channelID, messageID, content, previousContent, editedBy string) (bool, error) {
	if f.editPublishedMessageFn != nil {
		return f.editPublishedMessageFn(ctx, channelID, messageID, content, previousContent, editedBy)
	}
	return true, nil
}
func (f *fakeStore) DeleteMessage(ctx context.Context, channelID, messageID string) (bool, error) {
	if f.deleteMessageFn != nil {
		return f.deleteMessageFn(ctx, channelID, messageID)
	}
	return true, nil
}
func (f *fakeStore) ListMessageRevisions(ctx context.Context, messageID string) ([]store.MessageRevision, error) {
	if f.listMessageRevisionsFn != nil {
		return f.listMessageRevisionsFn(ctx, messageID)
	}
	return nil, nil
}
func (f *fakeStore) SummaryCounts(ctx context.Context) (int, int, int, error) {
	if f.summaryCountsFn != nil {
		return f.summaryCountsFn(ctx)
	}
	return 0, 0, 0, nil
}
func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func newTestService(fs *fakeStore) *Service {
	s := &Service{
		cfg:      config.Config{},
		store:    fs,
		sessions: fs,
		search:   search.NewService(nil, nil),
	}
	s.export = export.NewService(&exportStore{service: s})
	return s
}

func strPtr(s string) *string { return &s }

func memberSession(userID, userName string) Session {
	return Session{UserID: userID, UserName: userName, Role: "member"}
}

func TestCreateMessageRejectsContentThatSanitizesToNothing(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateMessage(context.Background(), "ch-1", MessageInput{
		Content: `<script>alert("hi")</script>   `,
	}, memberSession("user-1", "Avery"))

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}

func TestCreateMessageStripsDisallowedMarkup(t *testing.T) {
	var inserted store.Message
	fs := &fakeStore{
		insertPublishedMessageFn: func(_ context.Context, message store.Message) (store.Message, error) {
			inserted = message
			return message, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateMessage(context.Background(), "ch-1", MessageInput{
		Content: `<p onclick="evil()">Hello <script>alert(1)</script>world</p>`,
	}, memberSession("user-1", "Avery"))
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if inserted.Content != "<p>Hello world</p>" {
		t.Fatalf("expected sanitized content, got %q", inserted.Content)
	}
}

func TestCreateMessageUnknownChannelReturnsNotFound(t *testing.T) {
	fs := &fakeStore{
		channelExistsFn: func(context.Context, string) (bool, error) { return false, nil },
	}
	svc := newTestService(fs)

	_, err := svc.CreateMessage(context.Background(), "ch-missing", MessageInput{
		Content: "<p>Hi</p>",
	}, memberSession("user-1", "Avery"))
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestCreateMessageDraftGoesThroughUpsert(t *testing.T) {
	upsertCalls := 0
	insertCalls := 0
	fs := &fakeStore{
		upsertDraftFn: func(_ context.Context, message store.Message) (store.Message, error) {
			upsertCalls++
			message.IsDraft = true
			return message, nil
		},
		insertPublishedMessageFn: func(_ context.Context, message store.Message) (store.Message, error) {
			insertCalls++
			return message, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.CreateMessage(context.Background(), "ch-1", MessageInput{
		Content: "<p>Draft text</p>",
		IsDraft: true,
	}, memberSession("user-1", "Avery"))
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if upsertCalls != 1 {
		t.Fatalf("expected one UpsertDraft call, got %d", upsertCalls)
	}
	if insertCalls != 0 {
		t.Fatalf("expected no InsertPublishedMessage call, got %d", insertCalls)
	}
	if payload["isDraft"] != true {
		t.Fatalf("expected draft payload, got %v", payload["isDraft"])
	}
}

func TestCreateMessageRejectsReplyToReply(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				ParentID:  strPtr("msg-root"),
				AuthorID:  "user-2",
			}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateMessage(context.Background(), "ch-1", MessageInput{
		Content:  "<p>Nested reply</p>",
		ParentID: "msg-reply",
	}, memberSession("user-1", "Avery"))

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}

func TestCreateMessageRejectsOrphanedParent(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:         messageID,
				ChannelID:  "ch-1",
				AuthorID:   "user-2",
				IsOrphaned: true,
			}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateMessage(context.Background(), "ch-1", MessageInput{
		Content:  "<p>Reply</p>",
		ParentID: "msg-orphan",
	}, memberSession("user-1", "Avery"))

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}

func TestCreateMessageHidesDraftParent(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-2",
				IsDraft:   true,
			}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateMessage(context.Background(), "ch-1", MessageInput{
		Content:  "<p>Reply</p>",
		ParentID: "msg-draft",
	}, memberSession("user-1", "Avery"))
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for draft parent, got %v", err)
	}
}

func TestPublishDraftWithDeletedParentReturnsConflict(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			if messageID == "msg-draft" {
				return store.Message{
					ID:        messageID,
					ChannelID: "ch-1",
					ParentID:  strPtr("msg-gone"),
					AuthorID:  "user-1",
					IsDraft:   true,
					Content:   "<p>Reply draft</p>",
				}, nil
			}
			return store.Message{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateMessage(context.Background(), "ch-1", "msg-draft", UpdateMessageInput{
		Publish: true,
	}, memberSession("user-1", "Avery"))

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %s", domainErr.Code)
	}
}

func TestPublishDraftLosesRaceReturnsConflict(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-1",
				IsDraft:   true,
				Content:   "<p>Draft</p>",
			}, nil
		},
		publishMessageFn: func(context.Context, string, string, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateMessage(context.Background(), "ch-1", "msg-draft", UpdateMessageInput{
		Publish: true,
	}, memberSession("user-1", "Avery"))

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %s", domainErr.Code)
	}
}

func TestPublishAlreadyPublishedMessageReturnsConflict(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-1",
				Content:   "<p>Posted</p>",
			}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateMessage(context.Background(), "ch-1", "msg-1", UpdateMessageInput{
		Publish: true,
	}, memberSession("user-1", "Avery"))

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %s", domainErr.Code)
	}
}

func TestEditPublishedMessageRequiresAuthor(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-author",
				Content:   "<p>Posted</p>",
			}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateMessage(context.Background(), "ch-1", "msg-1", UpdateMessageInput{
		Content: strPtr("<p>Edited by someone else</p>"),
	}, Session{UserID: "user-moderator", UserName: "Mod", Role: "moderator"})

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN even for moderators, got %s", domainErr.Code)
	}
}

func TestEditPublishedMessageRecordsPreviousContent(t *testing.T) {
	var recordedPrevious string
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-1",
				Content:   "<p>Original</p>",
				Version:   0,
			}, nil
		},
		editPublishedMessageFn: func(_ context.Context, _, _, content, previousContent, editedBy string) (bool, error) {
			recordedPrevious = previousContent
			if editedBy != "Avery" {
				t.Fatalf("expected editor Avery, got %q", editedBy)
			}
			return true, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateMessage(context.Background(), "ch-1", "msg-1", UpdateMessageInput{
		Content: strPtr("<p>Edited</p>"),
	}, memberSession("user-1", "Avery"))
	if err != nil {
		t.Fatalf("UpdateMessage() error = %v", err)
	}
	if recordedPrevious != "<p>Original</p>" {
		t.Fatalf("expected previous content to be snapshotted, got %q", recordedPrevious)
	}
}

func TestUpdateDraftByOtherUserHidesExistence(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-author",
				IsDraft:   true,
				Content:   "<p>Private draft</p>",
			}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateMessage(context.Background(), "ch-1", "msg-draft", UpdateMessageInput{
		Content: strPtr("<p>Hijacked</p>"),
	}, memberSession("user-other", "Sam"))
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for foreign draft, got %v", err)
	}
}

func TestDeleteMessageRequiresAuthor(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-author",
				Content:   "<p>Posted</p>",
			}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.DeleteMessage(context.Background(), "ch-1", "msg-1", Session{UserID: "user-admin", UserName: "Root", Role: "admin"})

	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN even for admins, got %s", domainErr.Code)
	}
}

func TestDeleteDraftByOtherUserHidesExistence(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-author",
				IsDraft:   true,
			}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.DeleteMessage(context.Background(), "ch-1", "msg-draft", memberSession("user-other", "Sam"))
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for foreign draft, got %v", err)
	}
}

func TestListRevisionsVisibleToAuthorAndModerator(t *testing.T) {
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, _, messageID string) (store.Message, error) {
			return store.Message{
				ID:        messageID,
				ChannelID: "ch-1",
				AuthorID:  "user-author",
				Content:   "<p>Posted</p>",
				Version:   2,
			}, nil
		},
		listMessageRevisionsFn: func(context.Context, string) ([]store.MessageRevision, error) {
			return []store.MessageRevision{
				{ID: 1, MessageID: "msg-1", Version: 0, Content: "<p>v0</p>", EditedBy: "Avery"},
				{ID: 2, MessageID: "msg-1", Version: 1, Content: "<p>v1</p>", EditedBy: "Avery"},
			}, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.ListRevisions(context.Background(), "ch-1", "msg-1", memberSession("user-author", "Avery"))
	if err != nil {
		t.Fatalf("ListRevisions() author error = %v", err)
	}
	items, ok := payload["items"].([]map[string]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected two revisions, got %v", payload["items"])
	}
	if payload["currentVersion"] != 2 {
		t.Fatalf("expected currentVersion 2, got %v", payload["currentVersion"])
	}

	if _, err := svc.ListRevisions(context.Background(), "ch-1", "msg-1", Session{UserID: "user-mod", UserName: "Mod", Role: "moderator"}); err != nil {
		t.Fatalf("ListRevisions() moderator error = %v", err)
	}

	_, err = svc.ListRevisions(context.Background(), "ch-1", "msg-1", memberSession("user-other", "Sam"))
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError for stranger, got %v", err)
	}
	if domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", domainErr.Code)
	}
}

func TestDeleteChannelWithMessagesReturnsConflict(t *testing.T) {
	fs := &fakeStore{
		channelMessageCountFn: func(context.Context, string) (int, error) {
			return 3, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.DeleteChannel(context.Background(), "ch-1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %s", domainErr.Code)
	}
	details, ok := domainErr.Details.(map[string]any)
	if !ok || details["messages"] != 3 {
		t.Fatalf("expected message count in details, got %v", domainErr.Details)
	}
}

func TestCreateChannelRequiresTitle(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.CreateChannel(context.Background(), ChannelInput{Title: "   "}, "Avery")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}

func TestNormalizeTopicsDedupesCaseInsensitively(t *testing.T) {
	got := normalizeTopics([]string{" api ", "API", "", "design-review", "Design-Review"})
	if len(got) != 2 {
		t.Fatalf("expected 2 topics, got %v", got)
	}
	if got[0] != "api" || got[1] != "design-review" {
		t.Fatalf("expected first-seen spelling preserved, got %v", got)
	}
}

func TestTopicColorIsStable(t *testing.T) {
	first := topicColor("api")
	second := topicColor("  API ")
	if first != second {
		t.Fatalf("expected casing and whitespace to not affect color: %q vs %q", first, second)
	}
}

func TestGetChannelViewSeparatesDraftsAndSynthesizesPlaceholder(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		listMessagesFn: func(context.Context, string) ([]store.Message, error) {
			return []store.Message{
				{ID: "msg-root", ChannelID: "ch-1", AuthorID: "user-1", AuthorName: "Avery", Content: "<p>Root</p>", CreatedAt: base},
				{ID: "msg-orphan", ChannelID: "ch-1", ParentID: strPtr("msg-deleted"), AuthorID: "user-2", AuthorName: "Sam", Content: "<p>Orphan</p>", IsOrphaned: true, CreatedAt: base.Add(time.Minute)},
				{ID: "msg-my-draft", ChannelID: "ch-1", AuthorID: "user-1", AuthorName: "Avery", Content: "<p>Mine</p>", IsDraft: true, CreatedAt: base.Add(2 * time.Minute)},
				{ID: "msg-their-draft", ChannelID: "ch-1", AuthorID: "user-2", AuthorName: "Sam", Content: "<p>Theirs</p>", IsDraft: true, CreatedAt: base.Add(3 * time.Minute)},
			}, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.GetChannelView(context.Background(), "ch-1", memberSession("user-1", "Avery"), true)
	if err != nil {
		t.Fatalf("GetChannelView() error = %v", err)
	}

	drafts, ok := payload["drafts"].([]map[string]any)
	if !ok {
		t.Fatalf("expected drafts slice, got %T", payload["drafts"])
	}
	if len(drafts) != 1 || drafts[0]["id"] != "msg-my-draft" {
		t.Fatalf("expected only the viewer's draft, got %v", drafts)
	}

	threadView, ok := payload["thread"].(map[string]any)
	if !ok {
		t.Fatalf("expected thread payload, got %T", payload["thread"])
	}
	others, ok := threadView["others"].([]map[string]any)
	if !ok {
		t.Fatalf("expected others slice, got %T", threadView["others"])
	}
	if len(others) != 1 {
		t.Fatalf("expected one placeholder root, got %d", len(others))
	}
	if others[0]["id"] != "missing_msg-deleted" {
		t.Fatalf("expected placeholder root id missing_msg-deleted, got %v", others[0]["id"])
	}
	if others[0]["placeholder"] != true {
		t.Fatalf("expected placeholder flag, got %v", others[0]["placeholder"])
	}
	replies, ok := others[0]["replies"].([]map[string]any)
	if !ok || len(replies) != 1 || replies[0]["id"] != "msg-orphan" {
		t.Fatalf("expected orphaned reply under placeholder, got %v", others[0]["replies"])
	}
}

func TestGetChannelViewOmitsDraftsWithoutFlag(t *testing.T) {
	fs := &fakeStore{
		listMessagesFn: func(context.Context, string) ([]store.Message, error) {
			return []store.Message{
				{ID: "msg-my-draft", ChannelID: "ch-1", AuthorID: "user-1", AuthorName: "Avery", Content: "<p>Mine</p>", IsDraft: true},
			}, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.GetChannelView(context.Background(), "ch-1", memberSession("user-1", "Avery"), false)
	if err != nil {
		t.Fatalf("GetChannelView() error = %v", err)
	}
	drafts, ok := payload["drafts"].([]map[string]any)
	if !ok {
		t.Fatalf("expected drafts slice, got %T", payload["drafts"])
	}
	if len(drafts) != 0 {
		t.Fatalf("expected no drafts without includeDrafts, got %v", drafts)
	}
}

func TestSearchRejectsUnknownType(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Search(context.Background(), "rate limits", "document", "", 20, 0)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", domainErr.Code)
	}
}
