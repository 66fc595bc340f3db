package loaders

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
)

// ShaderLoader reads compiled SPIR-V stages. The bytes are not validated
// here; the pipeline builder rejects malformed blobs.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string, assetType metadata.ResourceType) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", path)
	}
	return &metadata.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), ".spv"),
		FullPath: path,
		Type:     assetType,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (sl *ShaderLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}
