package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, tf TargetsFile)
	}{
		{
			name: "valid file",
			content: `check_interval_minutes: 5
timezone: Europe/Berlin
targets:
  - name: Shop
    url: https://SHOP.example.com/
  - url: http://api.example.com:8080/health
`,
			check: func(t *testing.T, tf TargetsFile) {
				if tf.Interval() != 5*time.Minute {
					t.Errorf("interval: got %v", tf.Interval())
				}
				if tf.Location == nil || tf.Location.String() != "Europe/Berlin" {
					t.Errorf("location: got %v", tf.Location)
				}
				if len(tf.Targets) != 2 {
					t.Fatalf("want 2 targets, got %d", len(tf.Targets))
				}
				if tf.Targets[0].URL != "https://shop.example.com" {
					t.Errorf("url not normalized: %q", tf.Targets[0].URL)
				}
				if tf.Targets[1].Name != "api.example.com" {
					t.Errorf("default name: got %q", tf.Targets[1].Name)
				}
			},
		},
		{
			name: "timezone defaults to UTC",
			content: `check_interval_minutes: 1
targets: []
`,
			check: func(t *testing.T, tf TargetsFile) {
				if tf.Timezone != "UTC" {
					t.Errorf("timezone: got %q", tf.Timezone)
				}
			},
		},
		{
			name:    "missing interval",
			content: "targets: []\n",
			wantErr: true,
		},
		{
			name: "bad url",
			content: `check_interval_minutes: 1
targets:
  - url: ftp://files.example.com
`,
			wantErr: true,
		},
		{
			name: "duplicate url",
			content: `check_interval_minutes: 1
targets:
  - url: https://example.com
  - url: https://EXAMPLE.com/
`,
			wantErr: true,
		},
		{
			name: "unknown timezone",
			content: `check_interval_minutes: 1
timezone: Mars/Olympus
`,
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			content: `targets: [invalid`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf, err := ParseTargets([]byte(tt.content))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, tf)
			}
		})
	}
}

func TestLoadTargets_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(p, []byte("check_interval_minutes: 2\ntargets:\n  - url: https://example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tf, err := LoadTargets(p)
	if err != nil {
		t.Fatalf("LoadTargets: %v", err)
	}
	if got := tf.DomainTargets(); len(got) != 1 || got[0].Name != "example.com" {
		t.Fatalf("unexpected targets: %+v", got)
	}

	if _, err := LoadTargets("/nonexistent/targets.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
