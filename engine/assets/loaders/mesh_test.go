package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/volcano/engine/core"
)

func TestDecodeMesh(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantName  string
		wantCount uint32
		wantErr   bool
	}{
		{
			name:      "vertices",
			data:      "name = \"tri\"\nvertices = [[0,0,0,1, 1,0,0,1, 0,0,1], [1,0,0,1, 0,1,0,1, 0,0,1], [0,1,0,1, 0,0,1,1, 0,0,1]]",
			wantName:  "tri",
			wantCount: 3,
		},
		{
			name:      "cube generator uses file name",
			data:      "generator = \"cube\"\nsize = 0.5",
			wantName:  "fallback",
			wantCount: 36,
		},
		{name: "short vertex", data: "vertices = [[0,0,0]]", wantErr: true},
		{name: "unknown generator", data: "generator = \"sphere\"", wantErr: true},
		{name: "both", data: "generator = \"cube\"\nvertices = [[0,0,0,1,1,1,1,1,0,0,1]]", wantErr: true},
		{name: "empty", data: "name = \"nothing\"", wantErr: true},
		{name: "bad toml", data: "vertices = [", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mesh, err := DecodeMesh([]byte(tt.data), "fallback")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mesh.Name != tt.wantName || mesh.VertexCount() != tt.wantCount {
				t.Fatalf("got %q with %d vertices", mesh.Name, mesh.VertexCount())
			}
		})
	}
}

func TestDecodeMeshKeepsVertexValues(t *testing.T) {
	mesh, err := DecodeMesh([]byte("vertices = [[1,2,3,4,5,6,7,8,9,10,11]]"), "one")
	if err != nil {
		t.Fatal(err)
	}
	got := mesh.Vertices[0].Floats()
	for i, v := range got {
		if v != float32(i+1) {
			t.Fatalf("value %d is %v", i, v)
		}
	}
}

func TestDecodeEmptyMesh(t *testing.T) {
	if _, err := DecodeMesh([]byte("name = \"x\""), "x"); !errors.Is(err, core.ErrEmptyMesh) {
		t.Fatalf("expected ErrEmptyMesh, got %v", err)
	}
}

func TestDecodeBundledMeshes(t *testing.T) {
	tests := []struct {
		file  string
		name  string
		count uint32
	}{
		{file: "pyramid.toml", name: "pyramid", count: 18},
		{file: "small_cube.toml", name: "small_cube", count: 36},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("..", "..", "..", "assets", "meshes", tt.file))
			if err != nil {
				t.Fatal(err)
			}
			mesh, err := DecodeMesh(data, "unused")
			if err != nil {
				t.Fatal(err)
			}
			if mesh.Name != tt.name || mesh.VertexCount() != tt.count {
				t.Fatalf("got %q with %d vertices", mesh.Name, mesh.VertexCount())
			}
		})
	}
}
