package telemetry

import (
	"context"
	"testing"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	shutdown, err := Init(context.Background(), "transmon", "test")
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestParseSampleRate(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", defaultSampleRate},
		{"0.25", 0.25},
		{" 0 ", 0},
		{"1", 1},
		{"1.5", defaultSampleRate},
		{"-0.1", defaultSampleRate},
		{"lots", defaultSampleRate},
	}
	for _, tt := range tests {
		t.Setenv(EnvSampleRate, tt.raw)
		if got := parseSampleRate(); got != tt.want {
			t.Errorf("parseSampleRate(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestExporterOptions(t *testing.T) {
	if got := len(exporterOptions("http://collector:4318")); got != 4 {
		t.Fatalf("plain http options = %d, want 4 (insecure added)", got)
	}
	if got := len(exporterOptions("https://collector:4318")); got != 3 {
		t.Fatalf("https options = %d, want 3", got)
	}
}
