package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/sightings/internal/config"
)

func TestPathsUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SIGHTINGS_HOME", home)

	if got, want := Dir("field"), filepath.Join(home, "profiles", "field"); got != want {
		t.Errorf("Dir(field) = %q, want %q", got, want)
	}
	if got := StorePath("field"); !strings.HasSuffix(got, filepath.Join("profiles", "field", "field.db")) {
		t.Errorf("StorePath = %q", got)
	}
	if got := ServerSocketPath(); got != filepath.Join(home, "server", "sightd.sock") {
		t.Errorf("ServerSocketPath = %q", got)
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv("SIGHTINGS_HOME", "")
	home, _ := os.UserHomeDir()
	if got := BaseDir(); got != filepath.Join(home, ".sightings") {
		t.Errorf("BaseDir = %q", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("SIGHTINGS_HOME", t.TempDir())
	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Dir(LogPath("test")))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("log dir permission = %o, want 0700", perm)
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv("SIGHTINGS_HOME", t.TempDir())
	t.Setenv("SIGHT_PROFILE", "")

	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultName)
	}

	cfg := config.DefaultClient()
	cfg.DefaultProfile = "coast"
	if err := config.Save(ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "coast" {
		t.Errorf("Resolve() = %q, want config default", got)
	}
	if got := Resolve("moor"); got != "moor" {
		t.Errorf("Resolve(moor) = %q, flag must win", got)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "hide123", false},
		{"valid with hyphen", "north-shore", false},
		{"valid with underscore", "north_shore", false},
		{"valid max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my profile", true},
		{"dot", "my.profile", true},
		{"too long", strings.Repeat("a", 65), true},
		{"slash", "my/profile", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
