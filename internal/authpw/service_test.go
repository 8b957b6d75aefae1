package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"inkwell/api/internal/store"
)

type fakeUserStore struct {
	users  map[string]store.User // by id
	resets map[string]store.PasswordReset
	nextID int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:  map[string]store.User{},
		resets: map[string]store.PasswordReset{},
	}
}

func (f *fakeUserStore) CreateUser(ctx context.Context, displayName, email, passwordHash, verificationToken string, verificationExpiresAt time.Time) (store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return store.User{}, store.ErrEmailTaken
		}
	}
	f.nextID++
	user := store.User{
		ID:                    generateTestID(f.nextID),
		DisplayName:           displayName,
		Email:                 email,
		PasswordHash:          passwordHash,
		VerificationToken:     verificationToken,
		VerificationExpiresAt: &verificationExpiresAt,
	}
	f.users[user.ID] = user
	return user, nil
}

func generateTestID(n int) string {
	return string(rune('a'+n-1)) + "-user"
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) VerifyEmail(ctx context.Context, token string) (store.User, error) {
	for id, u := range f.users {
		if u.VerificationToken == token && token != "" {
			u.IsEmailVerified = true
			u.VerificationToken = ""
			f.users[id] = u
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) CreatePasswordReset(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	f.resets[tokenHash] = store.PasswordReset{TokenHash: tokenHash, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (f *fakeUserStore) ConsumePasswordReset(ctx context.Context, tokenHash string) (store.PasswordReset, error) {
	reset, ok := f.resets[tokenHash]
	if !ok || time.Now().After(reset.ExpiresAt) {
		return store.PasswordReset{}, store.ErrNotFound
	}
	delete(f.resets, tokenHash)
	return reset, nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "Avery@Example.com",
		Password:    "correct horse",
		DisplayName: "Avery",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if resp.User.Email != "avery@example.com" {
		t.Fatalf("email not normalized: %q", resp.User.Email)
	}
	if resp.VerificationToken == "" {
		t.Fatal("expected a verification token")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(resp.User.PasswordHash), []byte("correct horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	user, err := svc.SignIn(ctx, "avery@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if user.ID != resp.User.ID {
		t.Fatalf("signed in as %q, want %q", user.ID, resp.User.ID)
	}

	if _, err := svc.SignIn(ctx, "avery@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
}

func TestSignUpRejectsWeakOrDuplicate(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "short", DisplayName: "A"}); err == nil {
		t.Fatal("expected error for short password")
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Password: "long enough", DisplayName: "A"}); err == nil {
		t.Fatal("expected error for missing email")
	}

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "long enough", DisplayName: "A"}); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "long enough", DisplayName: "B"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestVerifyEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	resp, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "long enough", DisplayName: "A"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	user, err := svc.VerifyEmail(ctx, resp.VerificationToken)
	if err != nil {
		t.Fatalf("VerifyEmail() error = %v", err)
	}
	if !user.IsEmailVerified {
		t.Fatal("user not marked verified")
	}

	if _, err := svc.VerifyEmail(ctx, "bogus"); !errors.Is(err, ErrBadToken) {
		t.Fatalf("bogus token: %v", err)
	}
	if _, err := svc.VerifyEmail(ctx, ""); !errors.Is(err, ErrBadToken) {
		t.Fatalf("empty token: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	fake := newFakeUserStore()
	svc := NewService(fake)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "long enough", DisplayName: "A"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	// unknown emails succeed silently with no token
	_, token, err := svc.RequestPasswordReset(ctx, "nobody@b.c")
	if err != nil || token != "" {
		t.Fatalf("unknown email: token=%q err=%v", token, err)
	}

	_, token, err = svc.RequestPasswordReset(ctx, "a@b.c")
	if err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token")
	}
	// only the hash is stored
	if _, ok := fake.resets[token]; ok {
		t.Fatal("raw reset token stored")
	}

	if err := svc.ResetPassword(ctx, token, "brand new password"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if _, err := svc.SignIn(ctx, "a@b.c", "brand new password"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
	if _, err := svc.SignIn(ctx, "a@b.c", "long enough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}

	// tokens are single use
	if err := svc.ResetPassword(ctx, token, "another password"); !errors.Is(err, ErrBadToken) {
		t.Fatalf("reused token: %v", err)
	}
}
