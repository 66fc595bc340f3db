package loaders

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
)

// meshFile is the on-disk mesh description. Either Vertices or Generator
// must be set.
type meshFile struct {
	Name      string      `toml:"name"`
	Generator string      `toml:"generator"`
	Size      float32     `toml:"size"`
	Vertices  [][]float32 `toml:"vertices"`
}

type MeshLoader struct{}

func (ml *MeshLoader) Load(path string, assetType metadata.ResourceType) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read mesh %s", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mesh, err := DecodeMesh(data, name)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %s", path)
	}
	return &metadata.Resource{
		Name:     mesh.Name,
		FullPath: path,
		Type:     assetType,
		DataSize: uint64(len(mesh.Vertices)) * uint64(metadata.VertexStride),
		Data:     mesh,
	}, nil
}

func (ml *MeshLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// DecodeMesh parses a TOML mesh. fallbackName is used when the file does
// not name the mesh.
func DecodeMesh(data []byte, fallbackName string) (*metadata.MeshData, error) {
	var f meshFile
	if err := toml.Unmarshal(data, &f); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, errors.Wrapf(err, "line %d column %d", row, col)
		}
		return nil, err
	}
	if f.Name == "" {
		f.Name = fallbackName
	}

	switch f.Generator {
	case "":
	case "cube":
		if len(f.Vertices) > 0 {
			return nil, errors.Newf("mesh %q sets both vertices and a generator", f.Name)
		}
		return metadata.GenerateCube(f.Name, f.Size), nil
	default:
		return nil, errors.Newf("mesh %q: unknown generator %q", f.Name, f.Generator)
	}

	if len(f.Vertices) == 0 {
		return nil, errors.Wrapf(core.ErrEmptyMesh, "mesh %q", f.Name)
	}
	vertices := make([]metadata.Vertex, len(f.Vertices))
	for i, values := range f.Vertices {
		if len(values) != metadata.VertexFloats {
			return nil, errors.Newf("mesh %q: vertex %d has %d values, want %d", f.Name, i, len(values), metadata.VertexFloats)
		}
		var v [metadata.VertexFloats]float32
		copy(v[:], values)
		vertices[i] = metadata.NewVertex(v)
	}
	return metadata.NewMeshData(f.Name, vertices), nil
}
