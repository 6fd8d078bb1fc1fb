package database

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
)

func TestOpenAndMigrate(t *testing.T) {
	var logs bytes.Buffer
	db, err := Open(sqlite.Open("file:migrate?mode=memory&cache=shared"), slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	record := CV{PublicID: "doc-1", Title: "Jane Doe", Content: datatypes.JSON(`{"personal":{}}`), Status: StatusPending}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Create(&CV{PublicID: "doc-1", Content: datatypes.JSON(`{}`)}).Error; err == nil {
		t.Fatal("public_id must be unique")
	}

	var missing CV
	_ = db.Where("public_id = ?", "nope").First(&missing).Error
	if strings.Contains(logs.String(), "record not found") {
		t.Fatal("not found lookups must not be logged")
	}
}

func TestSlogWriter(t *testing.T) {
	var logs bytes.Buffer
	w := slogWriter{log: slog.New(slog.NewTextHandler(&logs, nil))}
	w.Printf("slow sql %dms", 700)
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "slow sql 700ms") {
		t.Fatalf("logs = %q", logs.String())
	}
}
