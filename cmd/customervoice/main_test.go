package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/tbourn/customer-voice-api/internal/config"
	"github.com/tbourn/customer-voice-api/internal/repo"
)

func TestDigestOptions_Request(t *testing.T) {
	req, err := digestOptions{start: "2024-05-01", end: "2024-05-08T12:00:00Z", noCompetitors: true}.request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.IncludeCompetitors {
		t.Fatalf("--no-competitors should disable the competitor summary")
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !req.Start.Equal(want) {
		t.Fatalf("start = %v, want %v", req.Start, want)
	}
	if req.End.Hour() != 12 {
		t.Fatalf("end = %v", req.End)
	}

	req, err = digestOptions{}.request()
	if err != nil || req.Start != nil || req.End != nil || !req.IncludeCompetitors {
		t.Fatalf("defaults: %+v %v", req, err)
	}

	if _, err := (digestOptions{end: "next tuesday"}).request(); err == nil || !strings.Contains(err.Error(), "--end") {
		t.Fatalf("expected --end error, got %v", err)
	}
}

func TestRunDigest_DryRunAndStored(t *testing.T) {
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() { closeStore(db) })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	req, _ := digestOptions{start: "2024-05-01", end: "2024-05-08"}.request()
	ctx := context.Background()

	var out bytes.Buffer
	if err := runDigest(ctx, db, req, digestOptions{dryRun: true, pretty: true}, &out); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out.String(), "\n  \"") {
		t.Fatalf("expected indented JSON, got %s", out.String())
	}
	var p map[string]any
	if err := json.Unmarshal(out.Bytes(), &p); err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, ok := p["digest_id"]; ok {
		t.Fatalf("dry run must not persist: %v", p["digest_id"])
	}
	n, _ := repo.CountDigests(ctx, db)
	if n != 0 {
		t.Fatalf("dry run stored %d digests", n)
	}

	out.Reset()
	if err := runDigest(ctx, db, req, digestOptions{}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := json.Unmarshal(out.Bytes(), &p); err != nil || p["digest_id"] == "" {
		t.Fatalf("stored digest: %s", out.String())
	}
	if n, _ := repo.CountDigests(ctx, db); n != 1 {
		t.Fatalf("expected one stored digest, got %d", n)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	if err := os.WriteFile(file, []byte("API_BASE_PATH=/v9/\nRATE_BURST=3\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv never overrides variables already set; start from a clean slate.
	t.Setenv("API_BASE_PATH", "")
	os.Unsetenv("API_BASE_PATH")
	t.Setenv("RATE_BURST", "")
	os.Unsetenv("RATE_BURST")
	t.Cleanup(func() { envFile = ".env" })

	envFile = file
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.APIBasePath != "/v9" || cfg.RateBurst != 3 {
		t.Fatalf("env file not applied: base=%q burst=%d", cfg.APIBasePath, cfg.RateBurst)
	}

	envFile = filepath.Join(dir, "missing.env")
	if _, err := loadConfig(); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestOpenStore_MigratesSQLite(t *testing.T) {
	cfg := config.Config{DatabaseURL: filepath.Join(t.TempDir(), "store.db"), DBMaxOpenConns: 1}
	db, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(func() { closeStore(db) })

	if got := backendName(db); got != "sqlite" {
		t.Fatalf("backend = %q", got)
	}
	if !db.Migrator().HasTable("digests") || !db.Migrator().HasTable("reviews") {
		t.Fatalf("schema not migrated")
	}

	if _, err := openStore(config.Config{DatabaseURL: filepath.Join(t.TempDir(), "no", "such", "dir.db")}); err == nil {
		t.Fatalf("expected open error for a missing directory")
	}
}

func TestLoadClassifier(t *testing.T) {
	c, err := loadClassifier(config.Config{})
	if err != nil || c == nil {
		t.Fatalf("default classifier: %v", err)
	}

	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	lex := "positive: [stellar]\nnegative: [meh]\nfallback: Other\ntopics:\n  - label: Billing\n    keywords: [invoice]\n"
	if err := os.WriteFile(path, []byte(lex), 0o600); err != nil {
		t.Fatalf("write lexicon: %v", err)
	}
	c, err = loadClassifier(config.Config{LexiconPath: path})
	if err != nil {
		t.Fatalf("custom lexicon: %v", err)
	}
	if s := c.Score("stellar invoice"); s.Score <= 0 {
		t.Fatalf("custom positive word ignored: %+v", s)
	}
	if topics := c.Topics("invoice"); len(topics) != 1 || topics[0].Label != "Billing" {
		t.Fatalf("topics = %+v", topics)
	}

	if _, err := loadClassifier(config.Config{LexiconPath: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
		t.Fatalf("expected error for a missing lexicon")
	}
}
