package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"exclusivelink/internal/models"
	"exclusivelink/pkg/instagram"
)

// oauthStubGraph 支撑 OAuth 流程的桩实现
type oauthStubGraph struct {
	stubGraph
	profileID string
}

func (s *oauthStubGraph) ExchangeCode(ctx context.Context, code string) (*instagram.TokenResponse, error) {
	if code == "bad-code" {
		return nil, &instagram.APIError{StatusCode: 400, Body: "invalid code"}
	}
	return &instagram.TokenResponse{AccessToken: "short-" + code, UserID: 42}, nil
}

func (s *oauthStubGraph) LongLivedToken(ctx context.Context, shortLivedToken string) (*instagram.LongLivedTokenResponse, error) {
	return &instagram.LongLivedTokenResponse{AccessToken: "long-" + shortLivedToken, TokenType: "bearer", ExpiresIn: 5183944}, nil
}

func (s *oauthStubGraph) RefreshToken(ctx context.Context, longLivedToken string) (*instagram.LongLivedTokenResponse, error) {
	return &instagram.LongLivedTokenResponse{AccessToken: "refreshed-" + longLivedToken, TokenType: "bearer", ExpiresIn: 5183944}, nil
}

func (s *oauthStubGraph) GetUser(ctx context.Context, accessToken string) (*instagram.UserProfile, error) {
	return &instagram.UserProfile{ID: s.profileID, Username: "criadora"}, nil
}

func (s *oauthStubGraph) GetPermissions(ctx context.Context, userID, accessToken string) (*instagram.PermissionsResponse, error) {
	return &instagram.PermissionsResponse{Data: []instagram.Permission{
		{Permission: "instagram_basic", Status: "granted"},
	}}, nil
}

func newTestDBForIntegration(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:integration_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.InstagramIntegration{}, &models.Automation{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestIntegrationService_Connect(t *testing.T) {
	db := newTestDBForIntegration(t)
	cipher := testCipher(t)
	svc := NewIntegrationService(db, &oauthStubGraph{profileID: "ig-42"}, cipher, quietLogger())
	ctx := context.Background()

	integration, err := svc.Connect(ctx, 1, "auth-code")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if integration.InstagramUserID != "ig-42" {
		t.Errorf("instagram user id = %q", integration.InstagramUserID)
	}
	if !integration.IsActive {
		t.Error("fresh connection should be active")
	}

	// 落库的是密文信封，解密后才是长期令牌
	if integration.AccessToken == "long-short-auth-code" {
		t.Fatal("access token must not be stored in plaintext")
	}
	plain, err := cipher.Decrypt(integration.AccessToken)
	if err != nil {
		t.Fatalf("decrypt stored token: %v", err)
	}
	if plain != "long-short-auth-code" {
		t.Errorf("stored token = %q", plain)
	}
}

func TestIntegrationService_ConnectUpserts(t *testing.T) {
	db := newTestDBForIntegration(t)
	svc := NewIntegrationService(db, &oauthStubGraph{profileID: "ig-1"}, testCipher(t), quietLogger())
	ctx := context.Background()

	first, err := svc.Connect(ctx, 1, "code-1")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	second, err := svc.Connect(ctx, 1, "code-2")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("reconnect should reuse the row, got %d then %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&models.InstagramIntegration{}).Count(&count)
	if count != 1 {
		t.Errorf("at most one integration per user, got %d rows", count)
	}
}

func TestIntegrationService_ConnectBadCode(t *testing.T) {
	svc := NewIntegrationService(newTestDBForIntegration(t), &oauthStubGraph{profileID: "x"}, testCipher(t), quietLogger())

	_, err := svc.Connect(context.Background(), 1, "bad-code")
	if err == nil {
		t.Fatal("expected error for rejected code")
	}
	var apiErr *instagram.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("platform error should be preserved in the chain, got %v", err)
	}
}

func TestIntegrationService_RefreshToken(t *testing.T) {
	db := newTestDBForIntegration(t)
	cipher := testCipher(t)
	svc := NewIntegrationService(db, &oauthStubGraph{profileID: "ig-1"}, cipher, quietLogger())
	ctx := context.Background()

	if _, err := svc.Connect(ctx, 1, "code"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := svc.RefreshToken(ctx, 1); err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}

	integration, err := svc.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	plain, err := cipher.Decrypt(integration.AccessToken)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !strings.HasPrefix(plain, "refreshed-") {
		t.Errorf("token not refreshed: %q", plain)
	}
}

func TestIntegrationService_DisconnectDeactivatesAutomations(t *testing.T) {
	db := newTestDBForIntegration(t)
	svc := NewIntegrationService(db, &oauthStubGraph{profileID: "ig-1"}, testCipher(t), quietLogger())
	ctx := context.Background()

	integration, err := svc.Connect(ctx, 1, "code")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	db.Create(&models.Automation{
		IntegrationID: integration.ID, UserID: 1, Name: "n",
		Trigger: models.TriggerDMKeyword, IsActive: true,
		FlowData: `{"type":"linear","keywords":["oi"]}`,
	})

	if err := svc.Disconnect(ctx, 1); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if _, err := svc.Get(ctx, 1); !errors.Is(err, ErrNoIntegration) {
		t.Errorf("integration should be gone, got %v", err)
	}
	var automation models.Automation
	if err := db.First(&automation).Error; err != nil {
		t.Fatalf("automation row should survive: %v", err)
	}
	if automation.IsActive {
		t.Error("automations must be deactivated on disconnect")
	}

	if err := svc.Disconnect(ctx, 1); !errors.Is(err, ErrNoIntegration) {
		t.Errorf("double disconnect: got %v", err)
	}
}
