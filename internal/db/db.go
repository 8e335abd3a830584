package db

import (
	"log"

	"github.com/frn-reports/voicereport/internal/dialogue"
	"github.com/frn-reports/voicereport/internal/models"
	"github.com/frn-reports/voicereport/internal/report"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&dialogue.Session{},
		&dialogue.Turn{},
		&dialogue.Answer{},
		&report.Job{},
	); err != nil {
		log.Fatalf("db automigrate: %v", err)
	}
	return gdb
}
