package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound covers lookups of rows that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner is returned when a row exists but belongs to someone
	// else. Handlers collapse it into a not-found response so nothing about
	// the resource leaks.
	ErrNotOwner = errors.New("not owner")
	// ErrEmailTaken is returned when registering an email that exists.
	ErrEmailTaken = errors.New("email already registered")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, displayName, email, passwordHash, verificationToken string, verificationExpiresAt time.Time) (User, error) {
	const insert = `
		INSERT INTO users (display_name, email, password_hash, verification_token, verification_expires_at)
		VALUES ($1, LOWER($2), $3, $4, $5)
		RETURNING id, display_name, email, password_hash, is_email_verified, created_at, updated_at
	`
	var user User
	err := s.db.QueryRowContext(ctx, insert, displayName, email, passwordHash, verificationToken, verificationExpiresAt).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "users_email_key") {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const query = `
		SELECT id, display_name, email, password_hash, is_email_verified, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const query = `
		SELECT id, display_name, email, password_hash, is_email_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// VerifyEmail consumes an unexpired verification token.
func (s *PostgresStore) VerifyEmail(ctx context.Context, token string) (User, error) {
	const update = `
		UPDATE users
		SET is_email_verified = TRUE, verification_token = NULL, verification_expires_at = NULL, updated_at = NOW()
		WHERE verification_token = $1 AND verification_expires_at > NOW()
		RETURNING id, display_name, email, password_hash, is_email_verified, created_at, updated_at
	`
	var user User
	err := s.db.QueryRowContext(ctx, update, token).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("verify email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- password resets ---

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset deletes and returns an unexpired reset entry, so a
// token can be redeemed at most once.
func (s *PostgresStore) ConsumePasswordReset(ctx context.Context, tokenHash string) (PasswordReset, error) {
	const query = `
		DELETE FROM password_resets
		WHERE token_hash = $1 AND expires_at > NOW()
		RETURNING token_hash, user_id, expires_at
	`
	var reset PasswordReset
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&reset.TokenHash, &reset.UserID, &reset.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PasswordReset{}, ErrNotFound
	}
	if err != nil {
		return PasswordReset{}, fmt.Errorf("consume password reset: %w", err)
	}
	return reset, nil
}

// --- refresh sessions (database fallback when Redis is not configured) ---

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.is_email_verified
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.IsEmailVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// --- documents ---

const documentColumns = `id, owner_id, title, content, word_count, character_count, last_edited_at, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content, &doc.WordCount, &doc.CharacterCount, &doc.LastEditedAt, &doc.CreatedAt, &doc.UpdatedAt)
	return doc, err
}

func (s *PostgresStore) CreateDocument(ctx context.Context, ownerID, title string, content []byte) (Document, error) {
	const insert = `
		INSERT INTO documents (owner_id, title, content)
		VALUES ($1, $2, $3)
		RETURNING ` + documentColumns
	doc, err := scanDocument(s.db.QueryRowContext(ctx, insert, ownerID, title, content))
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns the owner's documents, most recently edited first.
func (s *PostgresStore) ListDocuments(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE owner_id = $1
		ORDER BY last_edited_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, doc)
	}
	return items, rows.Err()
}

// GetDocument fetches a document and checks that ownerID owns it.
func (s *PostgresStore) GetDocument(ctx context.Context, documentID, ownerID string) (Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = $1
	`, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	if doc.OwnerID != ownerID {
		return Document{}, ErrNotOwner
	}
	return doc, nil
}

// UpdateDocument applies a patch after re-checking ownership. Content
// changes also bump last_edited_at.
func (s *PostgresStore) UpdateDocument(ctx context.Context, documentID, ownerID string, patch DocumentPatch) (Document, error) {
	if _, err := s.GetDocument(ctx, documentID, ownerID); err != nil {
		return Document{}, err
	}

	set := []string{"updated_at = NOW()"}
	args := []any{documentID}
	add := func(expr string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf(expr, len(args)))
	}
	if patch.Title != nil {
		add("title = $%d", *patch.Title)
	}
	if patch.Content != nil {
		add("content = $%d", patch.Content)
		set = append(set, "last_edited_at = NOW()")
	}
	if patch.WordCount != nil {
		add("word_count = $%d", *patch.WordCount)
	}
	if patch.CharacterCount != nil {
		add("character_count = $%d", *patch.CharacterCount)
	}

	query := `
		UPDATE documents SET ` + strings.Join(set, ", ") + `
		WHERE id = $1
		RETURNING ` + documentColumns
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Document{}, fmt.Errorf("update document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID, ownerID string) error {
	if _, err := s.GetDocument(ctx, documentID, ownerID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// --- writing samples ---

func (s *PostgresStore) CreateWritingSample(ctx context.Context, sample WritingSample) (WritingSample, error) {
	const insert = `
		INSERT INTO writing_samples (owner_id, title, content, file_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_id, title, content, file_url, created_at
	`
	var out WritingSample
	err := s.db.QueryRowContext(ctx, insert, sample.OwnerID, sample.Title, sample.Content, sample.FileURL).
		Scan(&out.ID, &out.OwnerID, &out.Title, &out.Content, &out.FileURL, &out.CreatedAt)
	if err != nil {
		return WritingSample{}, fmt.Errorf("insert writing sample: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListWritingSamples(ctx context.Context, ownerID string) ([]WritingSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, content, file_url, created_at
		FROM writing_samples
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list writing samples: %w", err)
	}
	defer rows.Close()

	items := make([]WritingSample, 0)
	for rows.Next() {
		var sample WritingSample
		if err := rows.Scan(&sample.ID, &sample.OwnerID, &sample.Title, &sample.Content, &sample.FileURL, &sample.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan writing sample: %w", err)
		}
		items = append(items, sample)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetWritingSample(ctx context.Context, sampleID, ownerID string) (WritingSample, error) {
	var sample WritingSample
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, content, file_url, created_at
		FROM writing_samples WHERE id = $1
	`, sampleID).Scan(&sample.ID, &sample.OwnerID, &sample.Title, &sample.Content, &sample.FileURL, &sample.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return WritingSample{}, ErrNotFound
	}
	if err != nil {
		return WritingSample{}, fmt.Errorf("get writing sample: %w", err)
	}
	if sample.OwnerID != ownerID {
		return WritingSample{}, ErrNotOwner
	}
	return sample, nil
}

func (s *PostgresStore) DeleteWritingSample(ctx context.Context, sampleID, ownerID string) error {
	if _, err := s.GetWritingSample(ctx, sampleID, ownerID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM writing_samples WHERE id=$1`, sampleID); err != nil {
		return fmt.Errorf("delete writing sample: %w", err)
	}
	return nil
}
