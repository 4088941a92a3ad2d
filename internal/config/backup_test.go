package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBackupUserConfig(t *testing.T) {
	// Create temp directory for test
	tmpDir := t.TempDir()

	// Override config path for testing
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	configDir := filepath.Join(tmpDir, "searchmcp")
	configPath := filepath.Join(configDir, "config.yaml")

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupUserConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath != "" {
			t.Errorf("expected empty backup path for non-existent config, got %s", backupPath)
		}
	})

	t.Run("backup existing config", func(t *testing.T) {
		// Create config directory and file
		if err := os.MkdirAll(configDir, 0755); err != nil {
			t.Fatalf("failed to create config dir: %v", err)
		}
		testContent := "version: 1\nembeddings:\n  provider: ollama\n"
		if err := os.WriteFile(configPath, []byte(testContent), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		backupPath, err := BackupUserConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backupPath == "" {
			t.Fatal("expected non-empty backup path")
		}

		// Verify backup exists and has correct content
		backupContent, err := os.ReadFile(backupPath)
		if err != nil {
			t.Fatalf("failed to read backup: %v", err)
		}
		if string(backupContent) != testContent {
			t.Errorf("backup content mismatch:\ngot: %s\nwant: %s", backupContent, testContent)
		}

		// Verify backup filename format
		if !filepath.IsAbs(backupPath) {
			t.Errorf("backup path should be absolute: %s", backupPath)
		}
	})
}

func TestListUserConfigBackups(t *testing.T) {
	tmpDir := t.TempDir()

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	configDir := filepath.Join(tmpDir, "searchmcp")
	configPath := filepath.Join(configDir, "config.yaml")

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	t.Run("no backups exist", func(t *testing.T) {
		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) != 0 {
			t.Errorf("expected 0 backups, got %d", len(backups))
		}
	})

	t.Run("list multiple backups", func(t *testing.T) {
		// Create some backup files with different timestamps
		timestamps := []string{"20260101-100000", "20260101-110000", "20260101-120000"}
		for _, ts := range timestamps {
			backupName := filepath.Join(configDir, "config.yaml.bak."+ts)
			if err := os.WriteFile(backupName, []byte("test"), 0644); err != nil {
				t.Fatalf("failed to create backup: %v", err)
			}
			// Small delay to ensure different mod times
			time.Sleep(10 * time.Millisecond)
		}

		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) != 3 {
			t.Errorf("expected 3 backups, got %d", len(backups))
		}

		// Verify sorted by mod time (newest first)
		for i := 1; i < len(backups); i++ {
			info1, _ := os.Stat(backups[i-1])
			info2, _ := os.Stat(backups[i])
			if info1.ModTime().Before(info2.ModTime()) {
				t.Errorf("backups not sorted correctly: %s before %s", backups[i-1], backups[i])
			}
		}
	})

	t.Run("cleanup old backups", func(t *testing.T) {
		// Create config file
		if err := os.WriteFile(configPath, []byte("test config"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		// Create 4 more backups (should trigger cleanup)
		for i := 0; i < 4; i++ {
			_, err := BackupUserConfig()
			if err != nil {
				t.Fatalf("failed to create backup: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
		}

		// Should have at most MaxBackups
		backups, err := ListUserConfigBackups()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(backups) > MaxBackups {
			t.Errorf("expected at most %d backups, got %d", MaxBackups, len(backups))
		}
	})
}

func TestMergeNewDefaults(t *testing.T) {
	t.Run("adds missing fusion fields", func(t *testing.T) {
		// Simulates upgrade from a config written before fusion tuning
		// became configurable.
		cfg := &Config{
			Version: 1,
			Sources: SourcesConfig{
				Web: WebSourceConfig{Endpoint: "http://localhost:8888"},
			},
			// Fusion.RRFConstant, Alpha, Algorithm are zero (not set)
		}

		added := cfg.MergeNewDefaults()

		if cfg.Fusion.RRFConstant != 60 {
			t.Errorf("RRFConstant should be 60, got %d", cfg.Fusion.RRFConstant)
		}
		if cfg.Fusion.Alpha != 0.6 {
			t.Errorf("Alpha should be 0.6, got %f", cfg.Fusion.Alpha)
		}
		if cfg.Fusion.Algorithm != "hybrid" {
			t.Errorf("Algorithm should be hybrid, got %s", cfg.Fusion.Algorithm)
		}

		// Should report the fields
		hasRRF := false
		hasAlpha := false
		hasAlgorithm := false
		for _, field := range added {
			if field == "fusion.rrf_constant" {
				hasRRF = true
			}
			if field == "fusion.alpha" {
				hasAlpha = true
			}
			if field == "fusion.algorithm" {
				hasAlgorithm = true
			}
		}
		if !hasRRF {
			t.Error("should report rrf_constant as added")
		}
		if !hasAlpha {
			t.Error("should report alpha as added")
		}
		if !hasAlgorithm {
			t.Error("should report algorithm as added")
		}
	})

	t.Run("adds missing recency and cache fields", func(t *testing.T) {
		cfg := &Config{
			Version: 1,
			Fusion: FusionConfig{
				RRFConstant: 60,
				Alpha:       0.6,
				Algorithm:   "hybrid",
			},
			// Recency and cache fields are zero
		}

		added := cfg.MergeNewDefaults()

		if cfg.Recency.Strength == 0 {
			t.Error("Recency.Strength should be set to default")
		}
		if cfg.Recency.HorizonDays == 0 {
			t.Error("Recency.HorizonDays should be set to default")
		}
		if cfg.Sources.CacheSize == 0 {
			t.Error("Sources.CacheSize should be set to default")
		}
		if cfg.Sources.CacheTTL == "" {
			t.Error("Sources.CacheTTL should be set to default")
		}

		hasStrength := false
		hasCacheSize := false
		for _, field := range added {
			if field == "recency.strength" {
				hasStrength = true
			}
			if field == "sources.cache_size" {
				hasCacheSize = true
			}
		}
		if !hasStrength {
			t.Error("should report recency.strength as added")
		}
		if !hasCacheSize {
			t.Error("should report sources.cache_size as added")
		}
	})

	t.Run("preserves existing values", func(t *testing.T) {
		cfg := &Config{
			Version: 1,
			Fusion: FusionConfig{
				RRFConstant: 80,         // Custom value
				Alpha:       0.4,        // Custom value
				Algorithm:   "pure_rrf", // Custom value
			},
			Recency: RecencyConfig{
				Strength:    0.3, // Custom value
				HorizonDays: 90,  // Custom value
			},
			Reranker: RerankerConfig{
				TopK: 50, // Custom value
			},
		}

		added := cfg.MergeNewDefaults()

		if cfg.Fusion.RRFConstant != 80 {
			t.Errorf("RRFConstant changed from 80 to %d", cfg.Fusion.RRFConstant)
		}
		if cfg.Fusion.Alpha != 0.4 {
			t.Errorf("Alpha changed from 0.4 to %f", cfg.Fusion.Alpha)
		}
		if cfg.Fusion.Algorithm != "pure_rrf" {
			t.Errorf("Algorithm changed from pure_rrf to %s", cfg.Fusion.Algorithm)
		}
		if cfg.Recency.Strength != 0.3 {
			t.Errorf("Strength changed from 0.3 to %f", cfg.Recency.Strength)
		}
		if cfg.Recency.HorizonDays != 90 {
			t.Errorf("HorizonDays changed from 90 to %d", cfg.Recency.HorizonDays)
		}
		if cfg.Reranker.TopK != 50 {
			t.Errorf("TopK changed from 50 to %d", cfg.Reranker.TopK)
		}

		// Should NOT report them as added
		for _, field := range added {
			if field == "fusion.rrf_constant" ||
				field == "fusion.alpha" ||
				field == "fusion.algorithm" ||
				field == "recency.strength" ||
				field == "recency.horizon_days" ||
				field == "reranker.top_k" {
				t.Errorf("should not report %s as added (was already set)", field)
			}
		}
	})

	t.Run("returns empty for complete config", func(t *testing.T) {
		// Create a complete config
		cfg := NewConfig()

		added := cfg.MergeNewDefaults()

		if len(added) != 0 {
			t.Errorf("expected 0 added fields for complete config, got %v", added)
		}
	})
}

func TestWriteYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := &Config{
		Version: 1,
		Sources: SourcesConfig{
			Vector: VectorSourceConfig{
				OllamaHost: "http://localhost:11434",
				Model:      "test-model",
			},
		},
	}

	if err := cfg.WriteYAML(configPath); err != nil {
		t.Fatalf("failed to write YAML: %v", err)
	}

	// Verify file exists and is readable
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	if len(data) == 0 {
		t.Error("written file is empty")
	}

	// Verify it contains expected content
	content := string(data)
	if !contains(content, "ollama_host: http://localhost:11434") {
		t.Error("written file should contain ollama_host")
	}
	if !contains(content, "model: test-model") {
		t.Error("written file should contain model: test-model")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > 0 && containsHelper(s, substr))
}

func containsHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
