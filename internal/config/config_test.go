package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:5000" || cfg.API.Timeout != 10*time.Second {
		t.Fatalf("unexpected api defaults %+v", cfg.API)
	}
	if cfg.List.PageSize != 10 || cfg.List.FetchSize != 100 {
		t.Fatalf("unexpected list defaults %+v", cfg.List)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != Default().API.BaseURL {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("api:\n  base_url: https://w2h.example.com\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.API.BaseURL != "https://w2h.example.com" || cfg.API.Timeout != 10*time.Second || cfg.List.PageSize != 10 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"api:\n  base_url: ftp://example.com\n": "base_url",
		"api:\n  timeout: 0s\n":                 "timeout",
		"list:\n  page_size: 0\n":               "page_size",
		"list:\n  fetch_size: 5\n":              "fetch_size",
		"log:\n  level: chatty\n":               "log.level",
		"api: [":                                "invalid config yaml",
	}
	for doc, want := range cases {
		_, err := FromYAML([]byte(doc))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%q: expected error mentioning %q, got %v", doc, want, err)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDefault(dir)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != GenerateDefault() {
		t.Fatalf("unexpected file content %q %v", data, err)
	}
	if _, err := WriteDefault(dir); err == nil {
		t.Fatalf("expected second write to refuse overwriting")
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load written config: %v", err)
	}
}
