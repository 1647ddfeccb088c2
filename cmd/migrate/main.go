package main

import (
	"fmt"
	"log"

	"exclusivelink/internal/config"
	"exclusivelink/internal/models"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	dsn := buildDSN(cfg)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Starting database migration...")

	err = db.AutoMigrate(
		&models.User{},
		&models.Material{},
		&models.AccessRequest{},
		&models.InstagramIntegration{},
		&models.Automation{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database migration completed successfully!")

	log.Println("Creating additional indexes...")

	// 审核队列按创作者+状态查询
	db.Exec("CREATE INDEX IF NOT EXISTS idx_access_requests_material_status ON access_requests(material_id, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_access_requests_status_created ON access_requests(status, created_at)")

	// webhook 热路径：按 Instagram 账号找连接，按连接找启用的自动化
	db.Exec("CREATE INDEX IF NOT EXISTS idx_integrations_ig_user_active ON instagram_integrations(instagram_user_id, is_active)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_automations_integration_active ON automations(integration_id, is_active, trigger_type)")

	db.Exec("CREATE INDEX IF NOT EXISTS idx_materials_creator_created ON materials(creator_id, created_at)")

	log.Println("Additional indexes created successfully!")
	log.Println("Migration process completed!")
}

func buildDSN(cfg *config.Config) string {
	d := cfg.Database
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port)
}
