package mirror

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"
)

func validOptions() Options {
	return Options{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "uploads",
		Timeout:   5 * time.Second,
	}
}

func TestOptions_Validate(t *testing.T) {
	if err := validOptions().Validate(); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"пустой endpoint", func(o *Options) { o.Endpoint = "" }},
		{"endpoint со схемой", func(o *Options) { o.Endpoint = "http://localhost:9000" }},
		{"нет access key", func(o *Options) { o.AccessKey = "" }},
		{"нет secret key", func(o *Options) { o.SecretKey = "" }},
		{"нет бакета", func(o *Options) { o.Bucket = "" }},
		{"нулевой таймаут", func(o *Options) { o.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(&opts)
			if err := opts.Validate(); err == nil {
				t.Error("ожидалась ошибка валидации")
			}
		})
	}
}

func TestOptions_URL(t *testing.T) {
	opts := validOptions()
	if got := opts.URL(); got != "http://localhost:9000" {
		t.Errorf("URL без TLS: получено %q", got)
	}
	opts.UseSSL = true
	if got := opts.URL(); got != "https://localhost:9000" {
		t.Errorf("URL с TLS: получено %q", got)
	}
}

func TestNewMinio_InvalidOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	opts := validOptions()
	opts.Bucket = ""
	if _, err := NewMinio(context.Background(), opts, logger); err == nil {
		t.Error("ожидалась ошибка для невалидных параметров")
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"uploads/profile/a.png", "uploads/profile/a.png"},
		{"/uploads/docs/b.png", "uploads/docs/b.png"},
		{"uploads//c.png", "uploads/c.png"},
	}

	for _, tt := range tests {
		if got := ObjectKey(tt.rel); got != tt.want {
			t.Errorf("ObjectKey(%q): ожидалось %q, получено %q", tt.rel, tt.want, got)
		}
	}
}
