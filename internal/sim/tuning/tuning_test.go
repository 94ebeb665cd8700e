package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_TuningYAML(t *testing.T) {
	cfg, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if cfg.Terrain.HeightmapResolution != 129 {
		t.Fatalf("heightmap_resolution: got %d want 129", cfg.Terrain.HeightmapResolution)
	}
	if len(cfg.Terrain.Regions) == 0 {
		t.Fatalf("expected regions from config")
	}
	if got := cfg.VisibleRadius(); got != 2 {
		t.Fatalf("visible radius: got %d want 2", got)
	}
	if cfg.HeightCurve() == nil {
		t.Fatalf("expected a height curve from config")
	}
	if warnings := cfg.Lint(); len(warnings) != 0 {
		t.Fatalf("shipped config has lint warnings: %v", warnings)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.ChunkSize() != 99 {
		t.Fatalf("chunk size: got %v want 99", cfg.ChunkSize())
	}
}

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_SchemaRejectsBadResolution(t *testing.T) {
	p := writeTemp(t, "terrain:\n  heightmap_resolution: 1\n")
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected schema error for heightmap_resolution=1")
	}
	if !strings.HasPrefix(err.Error(), "tuning.yaml:") {
		t.Fatalf("error not wrapped: %v", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	p := writeTemp(t, "world: [unclosed\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestValidate_NodeSmallerThanAlphaCell(t *testing.T) {
	cfg := Defaults()
	cfg.Paths.NodeSize = 0.01
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected node_size error")
	}
}

func TestValidate_DuplicateRegion(t *testing.T) {
	cfg := Defaults()
	cfg.Terrain.Regions = append(cfg.Terrain.Regions, RegionSpec{Name: "water", Height: 1})
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate region error")
	}
}

func TestNormalize_ClampsAndLints(t *testing.T) {
	p := writeTemp(t, `
terrain:
  noise_scale: -3
  regions:
    - { name: low, height: 0.6 }
    - { name: high, height: 0.2 }
    - { name: top, height: 1.0 }
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Terrain.NoiseScale != minNoiseScale {
		t.Fatalf("noise_scale: got %v want %v", cfg.Terrain.NoiseScale, minNoiseScale)
	}
	warnings := strings.Join(cfg.Lint(), "\n")
	if !strings.Contains(warnings, "noise_scale") {
		t.Fatalf("lint missing scale clamp: %q", warnings)
	}
	if !strings.Contains(warnings, "region high") {
		t.Fatalf("lint missing non-monotonic region: %q", warnings)
	}
}
