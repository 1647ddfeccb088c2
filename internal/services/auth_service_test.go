package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"exclusivelink/internal/models"
)

func newTestDBForAuth(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:auth_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := NewAuthService(newTestDBForAuth(t), quietLogger())
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Email:    "Ana@Example.com",
		Username: "ana",
		Password: "super-secret-1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Errorf("email should be normalized lowercase, got %q", user.Email)
	}
	if user.PasswordHash == "super-secret-1" {
		t.Error("password must not be stored in plaintext")
	}
	if user.SubscriptionStatus != "TRIAL" {
		t.Errorf("new accounts start on TRIAL, got %q", user.SubscriptionStatus)
	}
	if user.SubscriptionExpiresAt == nil || time.Until(*user.SubscriptionExpiresAt) > TrialDuration {
		t.Error("trial expiry should be set about 7 days out")
	}

	if _, err := svc.Login(ctx, "ana@example.com", "super-secret-1"); err != nil {
		t.Errorf("Login with correct password: %v", err)
	}
	if _, err := svc.Login(ctx, "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password should return ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email should return the same generic error, got %v", err)
	}
}

func TestAuthService_DuplicateRegistration(t *testing.T) {
	svc := NewAuthService(newTestDBForAuth(t), quietLogger())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Username: "ana", Password: "password123"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Username: "other", Password: "password123"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "c@d.com", Username: "ana", Password: "password123"}); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username: got %v", err)
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	svc := NewAuthService(newTestDBForAuth(t), quietLogger())
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Username: "ana", Password: "password123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	bio := "criadora de conteúdo"
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Bio: &bio})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Bio != bio {
		t.Errorf("bio = %q", updated.Bio)
	}
	if updated.Username != "ana" {
		t.Error("nil fields must stay untouched")
	}
}
