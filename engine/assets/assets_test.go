package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
)

const triangleTOML = `
name = "triangle"
vertices = [
  [-0.5, -0.5, 0.0, 1.0, 1.0, 0.0, 0.0, 1.0, 0.0, 0.0, 1.0],
  [ 0.5, -0.5, 0.0, 1.0, 0.0, 1.0, 0.0, 1.0, 0.0, 0.0, 1.0],
  [ 0.0,  0.5, 0.0, 1.0, 0.0, 0.0, 1.0, 1.0, 0.0, 0.0, 1.0],
]
`

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newManager(t *testing.T, dir string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager()
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	t.Cleanup(func() { _ = am.Close() })
	if err := am.Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return am
}

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		key  string
		want metadata.ResourceType
	}{
		{"shaders/volcano.vert.spv", metadata.ResourceTypeShader},
		{"volcano.frag.spv", metadata.ResourceTypeShader},
		{"meshes/cube.toml", metadata.ResourceTypeMesh},
		{"meshes/nested/cube.toml", metadata.ResourceTypeMesh},
		{"volcano.toml", metadata.ResourceTypeNone},
		{"shaders/volcano.vert", metadata.ResourceTypeNone},
		{"meshes/readme.md", metadata.ResourceTypeNone},
	}
	for _, tt := range tests {
		if got := determineAssetType(tt.key); got != tt.want {
			t.Errorf("%s: got %s want %s", tt.key, got, tt.want)
		}
	}
}

func TestInitializeIndexesAssets(t *testing.T) {
	dir := t.TempDir()
	shader := []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 0, 0}
	writeFile(t, dir, "shaders/volcano.vert.spv", shader)
	writeFile(t, dir, "shaders/volcano.vert", []byte("#version 450"))
	writeFile(t, dir, "meshes/triangle.toml", []byte(triangleTOML))
	writeFile(t, dir, "meshes/cube.toml", []byte("generator = \"cube\"\nsize = 2.0\n"))

	am := newManager(t, dir)
	if am.Len() != 3 {
		t.Fatalf("indexed %d assets, want 3", am.Len())
	}

	got, err := am.LoadShader("shaders/volcano.vert.spv")
	if err != nil {
		t.Fatalf("LoadShader: %v", err)
	}
	if string(got) != string(shader) {
		t.Fatalf("shader bytes %v", got)
	}

	tri, err := am.LoadMesh("meshes/triangle.toml")
	if err != nil {
		t.Fatalf("LoadMesh: %v", err)
	}
	if tri.Name != "triangle" || tri.VertexCount() != 3 {
		t.Fatalf("triangle %q with %d vertices", tri.Name, tri.VertexCount())
	}

	cube, err := am.LoadMesh("meshes/cube.toml")
	if err != nil {
		t.Fatalf("LoadMesh: %v", err)
	}
	if cube.Name != "cube" || cube.VertexCount() != 36 {
		t.Fatalf("cube %q with %d vertices", cube.Name, cube.VertexCount())
	}
}

func TestLoadAssetErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shaders/volcano.vert.spv", []byte{0x03, 0x02, 0x23, 0x07})
	am := newManager(t, dir)

	if _, err := am.LoadShader("shaders/missing.spv"); !errors.Is(err, core.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
	if _, err := am.LoadMesh("shaders/volcano.vert.spv"); err == nil {
		t.Fatal("loading a shader as a mesh must fail")
	}
}

func TestInitializeMissingDir(t *testing.T) {
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Close()
	if err := am.Initialize(filepath.Join(t.TempDir(), "nope")); !errors.Is(err, core.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestWatchDeliversNewMeshes(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "meshes"), 0o755); err != nil {
		t.Fatal(err)
	}
	am := newManager(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- am.Watch(ctx) }()

	writeFile(t, dir, "meshes/triangle.toml", []byte(triangleTOML))
	writeFile(t, dir, "notes.txt", []byte("ignored"))

	select {
	case mesh := <-am.Meshes():
		if mesh.Name != "triangle" || mesh.VertexCount() != 3 {
			t.Fatalf("mesh %q with %d vertices", mesh.Name, mesh.VertexCount())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no mesh delivered")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
