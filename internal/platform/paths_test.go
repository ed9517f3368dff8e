package platform

import (
	"path/filepath"
	"testing"
)

// TestPathsForLinuxWithXDG verifies XDG overrides on linux.
func TestPathsForLinuxWithXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{
		"XDG_CONFIG_HOME": "/xdg/config",
		"XDG_DATA_HOME":   "/xdg/data",
	}, "/fallback/config", "/fallback/data", "weekplan")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	want := Paths{
		ConfigPath: filepath.Join("/xdg/config", "weekplan", "config.toml"),
		EnvPath:    filepath.Join("/xdg/config", "weekplan", ".env"),
		DataDir:    filepath.Join("/xdg/data", "weekplan"),
		DBPath:     filepath.Join("/xdg/data", "weekplan", "weekplan.db"),
		LogDir:     filepath.Join("/xdg/data", "weekplan", "logs"),
	}
	if p != want {
		t.Fatalf("PathsFor() = %#v, want %#v", p, want)
	}
}

func TestPathsForWindowsUsesAppData(t *testing.T) {
	p, err := PathsFor("windows", map[string]string{
		"APPDATA":      `C:\Users\me\AppData\Roaming`,
		"LOCALAPPDATA": `C:\Users\me\AppData\Local`,
	}, `C:\fallback\config`, `C:\fallback\data`, "weekplan")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join(`C:\Users\me\AppData\Roaming`, "weekplan", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join(`C:\Users\me\AppData\Local`, "weekplan", "weekplan.db"); p.DBPath != want {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

func TestPathsForRejectsEmptyInputs(t *testing.T) {
	if _, err := PathsFor("darwin", nil, "", "/tmp/data", "weekplan"); err == nil {
		t.Fatal("expected error for empty dirs")
	}
	if _, err := PathsFor("darwin", nil, "/cfg", "/data", "  "); err == nil {
		t.Fatal("expected error for empty app name")
	}
}

// TestPathsForDarwinIgnoresXDG keeps the Application Support defaults on macOS.
func TestPathsForDarwinIgnoresXDG(t *testing.T) {
	base := "/Users/me/Library/Application Support"
	p, err := PathsFor("darwin", map[string]string{
		"XDG_CONFIG_HOME": "/ignored",
		"XDG_DATA_HOME":   "/ignored",
	}, base, base, "weekplan")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join(base, "weekplan", "config.toml"); p.ConfigPath != want {
		t.Fatalf("unexpected config path %q", p.ConfigPath)
	}
	if want := filepath.Join(base, "weekplan", "logs"); p.LogDir != want {
		t.Fatalf("unexpected log dir %q", p.LogDir)
	}
}

func TestPathsForLinuxFallbackWithoutXDG(t *testing.T) {
	p, err := PathsFor("linux", map[string]string{}, "/home/me/.config", "/home/me/.local/share", "weekplan")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join("/home/me/.local/share", "weekplan", "weekplan.db"); p.DBPath != want {
		t.Fatalf("unexpected db path %q", p.DBPath)
	}
}

func TestDefaultPathsSmoke(t *testing.T) {
	p, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if p.ConfigPath == "" || p.DBPath == "" || p.DataDir == "" || p.LogDir == "" {
		t.Fatalf("expected non-empty paths, got %#v", p)
	}
	if filepath.Base(p.DBPath) != "weekplan.db" {
		t.Fatalf("unexpected db name %q", p.DBPath)
	}
}

func TestDefaultPathsWithOptionsDevMode(t *testing.T) {
	p, err := DefaultPathsWithOptions(Options{DevMode: true})
	if err != nil {
		t.Fatalf("DefaultPathsWithOptions() error = %v", err)
	}
	if filepath.Base(filepath.Dir(p.ConfigPath)) != "weekplan-dev" {
		t.Fatalf("expected dev config dir suffix, got %q", p.ConfigPath)
	}
	if filepath.Base(p.DBPath) != "weekplan-dev.db" {
		t.Fatalf("expected dev db name, got %q", p.DBPath)
	}
}

func TestPathsForBlankOverrideFallsBack(t *testing.T) {
	p, err := PathsFor("freebsd", map[string]string{"XDG_CONFIG_HOME": "  ", "XDG_DATA_HOME": "/xdg/data"}, "/home/me/.config", "/home/me/.local/share", "weekplan")
	if err != nil {
		t.Fatalf("PathsFor() error = %v", err)
	}
	if want := filepath.Join("/home/me/.config", "weekplan", ".env"); p.EnvPath != want {
		t.Fatalf("unexpected env path %q", p.EnvPath)
	}
	if want := filepath.Join("/xdg/data", "weekplan", "logs"); p.LogDir != want {
		t.Fatalf("unexpected log dir %q", p.LogDir)
	}
}
