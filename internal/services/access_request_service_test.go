package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"exclusivelink/internal/models"
)

func newTestDBForRequests(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:requests_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Material{}, &models.AccessRequest{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedMaterial(t *testing.T, db *gorm.DB, creatorID uint, code string) models.Material {
	t.Helper()
	material := models.Material{
		CreatorID:  creatorID,
		Title:      "Guia",
		FileURL:    "https://files/guia.pdf",
		SecretCode: code,
		IsActive:   true,
	}
	if err := db.Create(&material).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}
	return material
}

func validRedeem(materialID uint, code string) RedeemInput {
	return RedeemInput{
		MaterialID:    materialID,
		FollowerName:  "Bia",
		FollowerEmail: "bia@example.com",
		SecretCode:    code,
		ScreenshotURL: "https://files/screenshot.png",
	}
}

func TestAccessRequestService_Redeem(t *testing.T) {
	db := newTestDBForRequests(t)
	svc := NewAccessRequestService(db, quietLogger())
	ctx := context.Background()
	material := seedMaterial(t, db, 1, "FOGUETE")

	// 暗号不区分大小写
	request, err := svc.Redeem(ctx, validRedeem(material.ID, "foguete"))
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if request.Status != models.RequestPending {
		t.Errorf("new request should be PENDING, got %q", request.Status)
	}

	if _, err := svc.Redeem(ctx, validRedeem(material.ID, "errado")); !errors.Is(err, ErrWrongSecretCode) {
		t.Errorf("wrong code: got %v", err)
	}

	input := validRedeem(material.ID, "FOGUETE")
	input.ScreenshotURL = "  "
	if _, err := svc.Redeem(ctx, input); !errors.Is(err, ErrScreenshotRequired) {
		t.Errorf("blank screenshot: got %v", err)
	}
}

func TestAccessRequestService_RedeemInactiveMaterial(t *testing.T) {
	db := newTestDBForRequests(t)
	svc := NewAccessRequestService(db, quietLogger())
	material := seedMaterial(t, db, 1, "X")
	db.Model(&material).Update("is_active", false)

	if _, err := svc.Redeem(context.Background(), validRedeem(material.ID, "X")); !errors.Is(err, ErrMaterialNotFound) {
		t.Errorf("inactive material should look like not-found, got %v", err)
	}
}

func TestAccessRequestService_ApproveBumpsDownloadCount(t *testing.T) {
	db := newTestDBForRequests(t)
	svc := NewAccessRequestService(db, quietLogger())
	ctx := context.Background()
	material := seedMaterial(t, db, 1, "CODE")

	request, err := svc.Redeem(ctx, validRedeem(material.ID, "code"))
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	approved, err := svc.Approve(ctx, 1, request.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != models.RequestApproved {
		t.Errorf("status = %q", approved.Status)
	}
	if approved.ReviewedAt == nil {
		t.Error("ReviewedAt must be stamped on approval")
	}

	var fresh models.Material
	if err := db.First(&fresh, material.ID).Error; err != nil {
		t.Fatalf("reload material: %v", err)
	}
	if fresh.DownloadCount != 1 {
		t.Errorf("download count = %d, want 1", fresh.DownloadCount)
	}

	// 二次审核被拒绝，计数不再变化
	if _, err := svc.Approve(ctx, 1, request.ID); !errors.Is(err, ErrRequestNotPending) {
		t.Errorf("double approve: got %v", err)
	}
	db.First(&fresh, material.ID)
	if fresh.DownloadCount != 1 {
		t.Errorf("double approve must not bump count again, got %d", fresh.DownloadCount)
	}
}

func TestAccessRequestService_ApproveOwnershipEnforced(t *testing.T) {
	db := newTestDBForRequests(t)
	svc := NewAccessRequestService(db, quietLogger())
	ctx := context.Background()
	material := seedMaterial(t, db, 1, "CODE")

	request, err := svc.Redeem(ctx, validRedeem(material.ID, "CODE"))
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	if _, err := svc.Approve(ctx, 99, request.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("foreign creator must not see the request, got %v", err)
	}
}

func TestAccessRequestService_Reject(t *testing.T) {
	db := newTestDBForRequests(t)
	svc := NewAccessRequestService(db, quietLogger())
	ctx := context.Background()
	material := seedMaterial(t, db, 1, "CODE")

	request, err := svc.Redeem(ctx, validRedeem(material.ID, "CODE"))
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	rejected, err := svc.Reject(ctx, 1, request.ID, "print ilegível")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.RequestRejected || rejected.RejectionReason != "print ilegível" {
		t.Errorf("unexpected rejection: %+v", rejected)
	}

	var fresh models.Material
	db.First(&fresh, material.ID)
	if fresh.DownloadCount != 0 {
		t.Error("rejection must not bump the download count")
	}
}

func TestAccessRequestService_ListForCreator(t *testing.T) {
	db := newTestDBForRequests(t)
	svc := NewAccessRequestService(db, quietLogger())
	ctx := context.Background()

	mine := seedMaterial(t, db, 1, "A")
	theirs := seedMaterial(t, db, 2, "B")

	if _, err := svc.Redeem(ctx, validRedeem(mine.ID, "A")); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if _, err := svc.Redeem(ctx, validRedeem(theirs.ID, "B")); err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	requests, err := svc.ListForCreator(ctx, 1, models.RequestPending)
	if err != nil {
		t.Fatalf("ListForCreator: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected only own requests, got %d", len(requests))
	}
	if requests[0].MaterialID != mine.ID {
		t.Errorf("wrong material: %d", requests[0].MaterialID)
	}
}
