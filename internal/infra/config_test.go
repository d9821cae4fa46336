package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigRequiredVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AGENT_BASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("empty DATABASE_URL must fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/genbroker")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("empty JWT_SECRET must fail")
	}

	t.Setenv("JWT_SECRET", "secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("empty AGENT_BASE_URL must fail")
	}

	t.Setenv("AGENT_BASE_URL", "http://agents:9000")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.OutputBucket != "generations" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/genbroker")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AGENT_BASE_URL", "http://agents:9000")
	t.Setenv("AGENT_TIMEOUT_SECONDS", "5")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AgentTimeout != 5*time.Second {
		t.Errorf("AgentTimeout = %s", cfg.AgentTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Errorf("unparseable int must fall back, got %d", cfg.RateLimitPerMin)
	}
}

func TestLoadConfiguredModels(t *testing.T) {
	models, err := LoadConfiguredModels("")
	if err != nil || models != nil {
		t.Fatalf("empty path: %v %v", models, err)
	}

	path := filepath.Join(t.TempDir(), "models.json")
	content := `[
		{"id": "base-1", "name": "Base", "storage_location": "models/base.safetensors"},
		{"id": "lora-1", "name": "Detail", "storage_location": "loras/detail.safetensors", "lora": true}
	]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	models, err = LoadConfiguredModels(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || !models[1].LoRA {
		t.Errorf("models = %+v", models)
	}
}

func TestLoadConfiguredModelsRejectsEmptyID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	if err := os.WriteFile(path, []byte(`[{"name": "nameless"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfiguredModels(path); err == nil {
		t.Fatal("empty id must fail")
	}
}
