package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Document is a stored rich document. Content is the editor's JSON payload,
// kept opaque here; the richtext package interprets it.
type Document struct {
	ID             string
	OwnerID        string
	Title          string
	Content        []byte
	WordCount      int
	CharacterCount int
	LastEditedAt   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DocumentPatch carries the fields an update may change. Nil fields are
// left untouched.
type DocumentPatch struct {
	Title          *string
	Content        []byte
	WordCount      *int
	CharacterCount *int
}

// WritingSample is a user-provided sample of their own prose, used to steer
// style-matched rewriting. FileURL is set when the sample was uploaded as a
// file rather than pasted.
type WritingSample struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string
	FileURL   string
	CreatedAt time.Time
}

// PasswordReset is a pending password-reset request. Only the token hash is
// stored.
type PasswordReset struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
}
