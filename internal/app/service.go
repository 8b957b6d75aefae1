package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"inkwell/api/internal/analysis"
	"inkwell/api/internal/auth"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/config"
	"inkwell/api/internal/docrepo"
	"inkwell/api/internal/editor"
	"inkwell/api/internal/export"
	"inkwell/api/internal/proofread"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/search"
	"inkwell/api/internal/storage"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

// Session is the authenticated caller attached to a request.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

// UpdateDocumentInput carries the mutable document fields.
type UpdateDocumentInput struct {
	Title   *string         `json:"title"`
	Content json.RawMessage `json:"content"`
}

type dataStore interface {
	Ping(context.Context) error
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	CreateDocument(ctx context.Context, ownerID, title string, content []byte) (store.Document, error)
	ListDocuments(ctx context.Context, ownerID string) ([]store.Document, error)
	GetDocument(ctx context.Context, documentID, ownerID string) (store.Document, error)
	UpdateDocument(ctx context.Context, documentID, ownerID string, patch store.DocumentPatch) (store.Document, error)
	DeleteDocument(ctx context.Context, documentID, ownerID string) error

	CreateWritingSample(ctx context.Context, sample store.WritingSample) (store.WritingSample, error)
	ListWritingSamples(ctx context.Context, ownerID string) ([]store.WritingSample, error)
	GetWritingSample(ctx context.Context, sampleID, ownerID string) (store.WritingSample, error)
	DeleteWritingSample(ctx context.Context, sampleID, ownerID string) error
}

// refreshStore holds refresh sessions. Redis-backed in production, the
// Postgres store covers deployments without Redis.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type analysisService interface {
	Proofread(ctx context.Context, text string) ([]proofread.Span, error)
	Readability(ctx context.Context, text string) (analysis.Metrics, error)
	Rewrite(ctx context.Context, text, sample string) (string, error)
}

type historyService interface {
	EnsureRepo(documentID string, initial docrepo.Content, author string) error
	CommitContent(documentID string, content docrepo.Content, author, message string) (docrepo.CommitInfo, error)
	History(documentID string, limit int) ([]docrepo.CommitInfo, error)
	ContentAt(documentID, hash string) (docrepo.Content, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	IndexSample(sample search.SampleRecord)
	DeleteDocument(id string)
	DeleteSample(id string)
}

type objectStore interface {
	SaveSample(ctx context.Context, ownerID, title string, data []byte, contentType string) (storage.Upload, error)
	Delete(ctx context.Context, key string) error
}

type exporter interface {
	Export(ctx context.Context, doc export.Document, format export.Format) (*export.Result, error)
}

type emailSender interface {
	IsConfigured() bool
	SendVerificationEmail(to, userName, verificationURL string) error
	SendPasswordResetEmail(to, userName, resetURL string) error
}

// Deps bundles the collaborators a Service needs. Search, Objects and
// Export may be nil when the deployment does not configure them.
type Deps struct {
	Store    dataStore
	Sessions refreshStore
	AuthPw   *authpw.Service
	Email    emailSender
	Analysis analysisService
	History  historyService
	Search   searchService
	Objects  objectStore
	Export   exporter
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions refreshStore
	authPw   *authpw.Service
	email    emailSender
	analysis analysisService
	history  historyService
	search   searchService
	objects  objectStore
	export   exporter
	editors  *editor.Manager
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		store:    deps.Store,
		sessions: deps.Sessions,
		authPw:   deps.AuthPw,
		email:    deps.Email,
		analysis: deps.Analysis,
		history:  deps.History,
		search:   deps.Search,
		objects:  deps.Objects,
		export:   deps.Export,
	}
	s.editors = editor.NewManager(deps.Analysis, s, editor.SessionConfig{
		TypingWindow:     cfg.TypingDebounce,
		BoundaryWindow:   cfg.BoundaryDebounce,
		MinAnalyzeLen:    editor.MinAnalyzeLen,
		AutosaveInterval: cfg.AutosaveInterval,
		AnalysisTimeout:  cfg.AnalysisTimeout,
	}, cfg.SessionIdleTTL)
	return s
}

// Run blocks until ctx is done, reaping idle editor sessions along the way.
func (s *Service) Run(ctx context.Context) {
	s.editors.Run(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authPw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// SendVerificationEmail delivers the signup verification link, when SMTP
// is configured.
func (s *Service) SendVerificationEmail(user store.User, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.AppBaseURL, token)
	if err := s.email.SendVerificationEmail(user.Email, user.DisplayName, url); err != nil {
		log.Printf("email: verification send to %s failed: %v", user.Email, err)
	}
}

func (s *Service) SendPasswordResetEmail(user store.User, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, token)
	if err := s.email.SendPasswordResetEmail(user.Email, user.DisplayName, url); err != nil {
		log.Printf("email: reset send to %s failed: %v", user.Email, err)
	}
}

// --- sessions ---

func (s *Service) CreateSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
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
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
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
	// The refresh record only carries the user ID. Re-read the profile so
	// the new access token carries current name and email.
	full, err := s.store.GetUserByID(ctx, user.ID)
	if err == nil {
		user = full
	}
	return s.CreateSession(ctx, user)
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

	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Email:     claims.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
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

// --- documents ---

func (s *Service) CreateDocument(ctx context.Context, session Session, title string, content json.RawMessage) (store.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	if len(content) == 0 {
		raw, err := richtext.FromText("").JSON()
		if err != nil {
			return store.Document{}, err
		}
		content = raw
	}
	doc, err := richtext.Parse(content)
	if err != nil {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "INVALID_CONTENT", "Document content is not valid", nil)
	}

	created, err := s.store.CreateDocument(ctx, session.UserID, title, content)
	if err != nil {
		return store.Document{}, err
	}

	if s.history != nil {
		if err := s.history.EnsureRepo(created.ID, docrepo.Content{Title: title, Doc: content}, session.UserName); err != nil {
			log.Printf("history: init repo for document %s: %v", created.ID, err)
		}
	}
	s.indexDocument(created, doc)
	return created, nil
}

func (s *Service) ListDocuments(ctx context.Context, session Session) ([]store.Document, error) {
	return s.store.ListDocuments(ctx, session.UserID)
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	return s.store.GetDocument(ctx, documentID, session.UserID)
}

func (s *Service) UpdateDocument(ctx context.Context, session Session, documentID string, input UpdateDocumentInput) (store.Document, error) {
	patch := store.DocumentPatch{}
	var doc *richtext.Doc

	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title must not be empty", nil)
		}
		patch.Title = &trimmed
	}
	if len(input.Content) > 0 {
		parsed, err := richtext.Parse(input.Content)
		if err != nil {
			return store.Document{}, domainError(http.StatusUnprocessableEntity, "INVALID_CONTENT", "Document content is not valid", nil)
		}
		doc = parsed
		plain := parsed.PlainText()
		words := richtext.WordCount(plain)
		chars := richtext.CharCount(plain)
		patch.Content = input.Content
		patch.WordCount = &words
		patch.CharacterCount = &chars
	}

	updated, err := s.store.UpdateDocument(ctx, documentID, session.UserID, patch)
	if err != nil {
		return store.Document{}, err
	}

	if doc != nil && s.history != nil {
		if _, err := s.history.CommitContent(updated.ID, docrepo.Content{Title: updated.Title, Doc: updated.Content}, session.UserName, "Save document"); err != nil {
			log.Printf("history: commit for document %s: %v", updated.ID, err)
		}
	}
	s.indexDocument(updated, doc)
	return updated, nil
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) error {
	if err := s.store.DeleteDocument(ctx, documentID, session.UserID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteDocument(documentID)
	}
	return nil
}

func (s *Service) DocumentHistory(ctx context.Context, session Session, documentID string, limit int) ([]docrepo.CommitInfo, error) {
	if _, err := s.store.GetDocument(ctx, documentID, session.UserID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []docrepo.CommitInfo{}, nil
	}
	return s.history.History(documentID, limit)
}

func (s *Service) DocumentVersion(ctx context.Context, session Session, documentID, hash string) (docrepo.Content, error) {
	if _, err := s.store.GetDocument(ctx, documentID, session.UserID); err != nil {
		return docrepo.Content{}, err
	}
	if s.history == nil {
		return docrepo.Content{}, domainError(http.StatusNotFound, "NOT_FOUND", "Version history not available", nil)
	}
	content, err := s.history.ContentAt(documentID, hash)
	if err != nil {
		return docrepo.Content{}, domainError(http.StatusNotFound, "NOT_FOUND", "Version not found", nil)
	}
	return content, nil
}

func (s *Service) ExportDocument(ctx context.Context, session Session, documentID string, format export.Format) (*export.Result, error) {
	record, err := s.store.GetDocument(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	doc, err := richtext.Parse(record.Content)
	if err != nil {
		return nil, fmt.Errorf("parse stored content: %w", err)
	}
	return s.export.Export(ctx, export.Document{
		ID:        record.ID,
		Title:     record.Title,
		Author:    session.UserName,
		UpdatedAt: record.LastEditedAt,
		Content:   doc,
	}, format)
}

func (s *Service) indexDocument(record store.Document, doc *richtext.Doc) {
	if s.search == nil {
		return
	}
	body := ""
	if doc == nil {
		if parsed, err := richtext.Parse(record.Content); err == nil {
			doc = parsed
		}
	}
	if doc != nil {
		body = doc.PlainText()
	}
	s.search.IndexDocument(search.DocumentRecord{
		ID:      record.ID,
		Title:   record.Title,
		Body:    body,
		OwnerID: record.OwnerID,
	})
}

// --- editor sessions ---

func (s *Service) OpenEditor(ctx context.Context, session Session, documentID string) (*editor.Session, error) {
	record, err := s.store.GetDocument(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	return s.editors.Open(documentID, session.UserID, record.Content)
}

func (s *Service) EditorSession(documentID, ownerID string) (*editor.Session, error) {
	return s.editors.Get(documentID, ownerID)
}

func (s *Service) CloseEditor(ctx context.Context, session Session, documentID string) error {
	return s.editors.Close(ctx, documentID, session.UserID)
}

// SaveContent persists an editor session's buffer. It implements
// editor.Saver: ownership is re-checked by the store query.
func (s *Service) SaveContent(ctx context.Context, docID, ownerID string, content []byte, wordCount, charCount int) error {
	updated, err := s.store.UpdateDocument(ctx, docID, ownerID, store.DocumentPatch{
		Content:        content,
		WordCount:      &wordCount,
		CharacterCount: &charCount,
	})
	if err != nil {
		return err
	}
	if s.history != nil {
		user, err := s.store.GetUserByID(ctx, ownerID)
		author := "Unknown"
		if err == nil {
			author = user.DisplayName
		}
		if _, err := s.history.CommitContent(docID, docrepo.Content{Title: updated.Title, Doc: content}, author, "Autosave"); err != nil {
			log.Printf("history: autosave commit for document %s: %v", docID, err)
		}
	}
	s.indexDocument(updated, nil)
	return nil
}

// --- analysis ---

func (s *Service) Proofread(ctx context.Context, text string) ([]proofread.Span, error) {
	spans, err := s.analysis.Proofread(ctx, text)
	if err != nil {
		return nil, err
	}
	kept, _ := proofread.ValidateSpans(spans, richtext.CharCount(text))
	return kept, nil
}

func (s *Service) Readability(ctx context.Context, text string) (analysis.Metrics, error) {
	return s.analysis.Readability(ctx, text)
}

// Rewrite restyles text after the given writing sample. When sampleID is
// set the sample body is loaded from the caller's library.
func (s *Service) Rewrite(ctx context.Context, session Session, text, sampleID, sampleText string) (string, error) {
	sample := sampleText
	if sampleID != "" {
		record, err := s.store.GetWritingSample(ctx, sampleID, session.UserID)
		if err != nil {
			return "", err
		}
		sample = record.Content
	}
	if strings.TrimSpace(sample) == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a writing sample is required", nil)
	}
	return s.analysis.Rewrite(ctx, text, sample)
}

// --- writing samples ---

func (s *Service) CreateSample(ctx context.Context, session Session, title, content string) (store.WritingSample, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.WritingSample{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if strings.TrimSpace(content) == "" {
		return store.WritingSample{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	created, err := s.store.CreateWritingSample(ctx, store.WritingSample{
		OwnerID: session.UserID,
		Title:   title,
		Content: content,
	})
	if err != nil {
		return store.WritingSample{}, err
	}
	s.indexSample(created)
	return created, nil
}

// UploadSample stores an uploaded file and records the sample. For plain
// text uploads the body doubles as sample content; binary formats carry
// the text extracted by the client.
func (s *Service) UploadSample(ctx context.Context, session Session, title string, data []byte, contentType, extractedText string) (store.WritingSample, error) {
	if s.objects == nil {
		return store.WritingSample{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not configured", nil)
	}
	if err := storage.ValidateUpload(int64(len(data)), contentType); err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			return store.WritingSample{}, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the 10MB limit", nil)
		case errors.Is(err, storage.ErrUnsupportedType):
			return store.WritingSample{}, domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE", "Only .txt, .pdf and .docx files are accepted", nil)
		default:
			return store.WritingSample{}, err
		}
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "Uploaded sample"
	}

	content := extractedText
	if content == "" && strings.HasPrefix(contentType, "text/plain") {
		content = string(data)
	}

	upload, err := s.objects.SaveSample(ctx, session.UserID, title, data, contentType)
	if err != nil {
		return store.WritingSample{}, err
	}

	created, err := s.store.CreateWritingSample(ctx, store.WritingSample{
		OwnerID: session.UserID,
		Title:   title,
		Content: content,
		FileURL: upload.URL,
	})
	if err != nil {
		_ = s.objects.Delete(ctx, upload.Key)
		return store.WritingSample{}, err
	}
	s.indexSample(created)
	return created, nil
}

func (s *Service) ListSamples(ctx context.Context, session Session) ([]store.WritingSample, error) {
	return s.store.ListWritingSamples(ctx, session.UserID)
}

func (s *Service) GetSample(ctx context.Context, session Session, sampleID string) (store.WritingSample, error) {
	return s.store.GetWritingSample(ctx, sampleID, session.UserID)
}

func (s *Service) DeleteSample(ctx context.Context, session Session, sampleID string) error {
	sample, err := s.store.GetWritingSample(ctx, sampleID, session.UserID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteWritingSample(ctx, sampleID, session.UserID); err != nil {
		return err
	}
	if s.objects != nil {
		if key := objectKeyFromURL(sample.FileURL); key != "" {
			if err := s.objects.Delete(ctx, key); err != nil {
				log.Printf("storage: delete %s: %v", key, err)
			}
		}
	}
	if s.search != nil {
		s.search.DeleteSample(sampleID)
	}
	return nil
}

func (s *Service) indexSample(sample store.WritingSample) {
	if s.search == nil {
		return
	}
	s.search.IndexSample(search.SampleRecord{
		ID:      sample.ID,
		Title:   sample.Title,
		Body:    sample.Content,
		OwnerID: sample.OwnerID,
	})
}

// objectKeyFromURL recovers the storage key from a stored file URL.
// Sample objects live under the samples/ prefix.
func objectKeyFromURL(url string) string {
	idx := strings.Index(url, "samples/")
	if idx < 0 {
		return ""
	}
	return url[idx:]
}

// --- search ---

func (s *Service) Search(ctx context.Context, session Session, text string, filter search.ResultType, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(search.Query{
		Text:       text,
		OwnerID:    session.UserID,
		FilterType: filter,
		Limit:      limit,
		Offset:     offset,
	})
}
