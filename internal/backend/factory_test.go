package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"studydash/internal/config"
)

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name         string
		config       Config
		wantWritable bool
		wantPeriods  bool
		wantSnaps    bool
	}{
		{"api", Config{Type: APIBackend, APIBaseURL: "http://localhost:9/api", APIPageSize: 100}, false, true, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "s.db")}, true, false, true},
		{"memory", Config{Type: MemoryBackend, DataDirectory: dir}, true, false, false},
	}

	f := NewFactory(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.CreateBackend(context.Background(), tt.config)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			if res.Cleanup != nil {
				defer res.Cleanup()
			}
			b := res.Backend
			if b.Payments == nil || b.Students == nil {
				t.Fatal("listers must always be set")
			}
			if b.Writable() != tt.wantWritable {
				t.Errorf("Writable() = %v, want %v", b.Writable(), tt.wantWritable)
			}
			if (b.Periods != nil) != tt.wantPeriods {
				t.Errorf("Periods set = %v, want %v", b.Periods != nil, tt.wantPeriods)
			}
			if (b.Snapshots != nil) != tt.wantSnaps {
				t.Errorf("Snapshots set = %v, want %v", b.Snapshots != nil, tt.wantSnaps)
			}
		})
	}
}

func TestCreateBackendInvalid(t *testing.T) {
	f := NewFactory(nil)
	for _, c := range []Config{
		{Type: "sheets"},
		{Type: APIBackend},
		{Type: SQLiteBackend},
	} {
		if _, err := f.CreateBackend(context.Background(), c); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}

	got, err := FromAppConfig(&config.Config{DataBackend: "api", APIBaseURL: "https://x/api", APIToken: "t", APIPageSize: 50})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if got.Type != APIBackend || got.APIBaseURL != "https://x/api" || got.APIPageSize != 50 {
		t.Errorf("unexpected config %+v", got)
	}
}

func TestBackendTypeShared(t *testing.T) {
	tests := []struct {
		bt   BackendType
		want bool
	}{
		{APIBackend, true},
		{SQLiteBackend, true},
		{MemoryBackend, false},
		{"sheets", false},
	}
	for _, tt := range tests {
		if got := tt.bt.Shared(); got != tt.want {
			t.Errorf("%s.Shared() = %v, want %v", tt.bt, got, tt.want)
		}
	}
}

func TestValidateForWorker(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "sqlite", cfg: Config{Type: SQLiteBackend, SQLiteDBPath: "db.sqlite"}},
		{name: "api", cfg: Config{Type: APIBackend, APIBaseURL: "https://x/api"}},
		{name: "memory is private", cfg: Config{Type: MemoryBackend}, wantErr: "private to one process"},
		{name: "invalid config", cfg: Config{Type: APIBackend}, wantErr: "API base URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateForWorker()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
