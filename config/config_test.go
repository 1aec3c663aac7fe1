package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "rend.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[memory]
pool-scale = 2.0
ballast-bytes = 1048576

[log]
verbosity = 2

[server]
port = 9000

[cache]
enabled = true
path = "cache/scans.db"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Memory.PoolScale != 2.0 {
		t.Errorf("PoolScale = %g, want 2", c.Memory.PoolScale)
	}
	if c.Memory.BallastBytes != 1048576 {
		t.Errorf("BallastBytes = %d", c.Memory.BallastBytes)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("Verbosity = %d, want 2", c.Log.Verbosity)
	}
	if c.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", c.Server.Port)
	}
	if !c.Cache.Enabled {
		t.Error("Cache.Enabled = false")
	}
	if c.Dir == "" || !filepath.IsAbs(c.Dir) {
		t.Errorf("Dir = %q, want absolute", c.Dir)
	}
}

func TestLoadDefaultsPreserved(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `[log]
verbosity = 1
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// unset sections keep the built-in values
	if c.Server.Port != 4589 {
		t.Errorf("default Port = %d, want 4589", c.Server.Port)
	}
	if c.Cache.Path != ".rend/scan-cache.db" {
		t.Errorf("default cache path = %q", c.Cache.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of an empty directory should fail")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `[server]
port = 7777
`)
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Server.Port != 7777 {
		t.Errorf("Port = %d, want 7777 from the ancestor config", c.Server.Port)
	}
}

func TestFindAndLoadFallsBackToDefaults(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Server.Port != 4589 {
		t.Errorf("fallback Port = %d, want 4589", c.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REND_ALWAYS_MALLOC", "1")
	t.Setenv("REND_WATCH_FAIL", "1")

	dir := t.TempDir()
	writeConfig(t, dir, "")
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Memory.AlwaysMalloc {
		t.Error("REND_ALWAYS_MALLOC not applied")
	}
	if !c.Log.WatchFail {
		t.Error("REND_WATCH_FAIL not applied")
	}
}

func TestCachePathResolution(t *testing.T) {
	c := Default()
	c.Dir = "/srv/project"
	if got := c.CachePath(); got != "/srv/project/.rend/scan-cache.db" {
		t.Errorf("CachePath = %q", got)
	}

	c.Cache.Path = "/var/cache/rend.db"
	if got := c.CachePath(); got != "/var/cache/rend.db" {
		t.Errorf("absolute CachePath = %q", got)
	}
}
