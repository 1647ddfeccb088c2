package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"exclusivelink/internal/models"
	"exclusivelink/internal/services"
)

func newPublicMaterialRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:material_handler_" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.Material{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	handler := NewMaterialHandler(services.NewMaterialService(db, logger))

	r := gin.New()
	public := r.Group("/public")
	RegisterPublicMaterialRoutes(public, handler)
	return r, db
}

func TestMaterialHandler_PublicViewShowsCreatorHidesSecrets(t *testing.T) {
	r, db := newPublicMaterialRouter(t)

	creator := models.User{Email: "ana@example.com", Username: "ana", PasswordHash: "x", DisplayName: "Ana Criativa"}
	if err := db.Create(&creator).Error; err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	material := models.Material{
		CreatorID:   creator.ID,
		Title:       "Guia",
		Description: "material exclusivo",
		FileURL:     "https://cdn/guia.pdf",
		FileType:    "pdf",
		SecretCode:  "FOGUETE",
		IsActive:    true,
	}
	if err := db.Create(&material).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/public/materials/%d", material.ID), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var view map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view["creator_name"] != "Ana Criativa" {
		t.Errorf("creator_name = %v", view["creator_name"])
	}

	// 落地页绝不能泄露文件地址和暗号
	body := w.Body.String()
	if strings.Contains(body, "guia.pdf") || strings.Contains(body, "FOGUETE") {
		t.Errorf("public view leaks gated data: %s", body)
	}
}

func TestMaterialHandler_PublicViewFallsBackToUsername(t *testing.T) {
	r, db := newPublicMaterialRouter(t)

	creator := models.User{Email: "leo@example.com", Username: "leo", PasswordHash: "x"}
	if err := db.Create(&creator).Error; err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	material := models.Material{CreatorID: creator.ID, Title: "Guia", FileURL: "u", SecretCode: "C", IsActive: true}
	if err := db.Create(&material).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/public/materials/%d", material.ID), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var view map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view["creator_name"] != "leo" {
		t.Errorf("creator_name = %v, want username fallback", view["creator_name"])
	}
}

func TestMaterialHandler_PublicInactiveNotFound(t *testing.T) {
	r, db := newPublicMaterialRouter(t)

	material := models.Material{CreatorID: 1, Title: "Guia", FileURL: "u", SecretCode: "C", IsActive: false}
	if err := db.Create(&material).Error; err != nil {
		t.Fatalf("seed material: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/public/materials/%d", material.ID), nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("inactive material: status = %d, want 404", w.Code)
	}
}
