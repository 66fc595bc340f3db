package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/volcano/engine/assets/loaders"
	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
)

// meshQueueSize bounds the meshes a watcher can hold before the render loop
// drains them.
const meshQueueSize = 16

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time

	// size and modTime of the file when it was last delivered to Meshes.
	size    int64
	modTime time.Time
}

// AssetManager indexes an asset directory by file type and loads entries
// through the loader registered for their type.
type AssetManager struct {
	dir     string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	fsnotify *fsnotify.Watcher
	meshes   chan *metadata.MeshData
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create asset watcher")
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		meshes:   make(chan *metadata.MeshData, meshQueueSize),
	}, nil
}

// Initialize indexes every file under assetsDir and starts watching its
// directories. Events are only processed once Watch runs.
func (am *AssetManager) Initialize(assetsDir string) error {
	am.dir = filepath.Clean(assetsDir)

	s, err := os.Stat(am.dir)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "asset dir %s", am.dir), core.ErrAssetNotFound)
	}
	if !s.IsDir() {
		return errors.Wrapf(core.ErrAssetNotFound, "asset dir %s is not a directory", am.dir)
	}

	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeMesh, &loaders.MeshLoader{})

	if err := am.watchRecursive(am.dir); err != nil {
		return err
	}
	core.LogDebug("asset dir %s indexed: %d assets", am.dir, am.Len())
	return nil
}

func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Len is the number of indexed assets.
func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Meshes delivers mesh files created or rewritten while Watch runs.
func (am *AssetManager) Meshes() <-chan *metadata.MeshData {
	return am.meshes
}

// LoadAsset loads name, a path relative to the asset dir, with the loader
// of resourceType.
func (am *AssetManager) LoadAsset(name string, resourceType metadata.ResourceType) (*metadata.Resource, error) {
	key := filepath.ToSlash(filepath.Clean(name))

	am.mutex.Lock()
	asset, exists := am.assets[key]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[key] = asset
	}
	am.mutex.Unlock()

	if !exists {
		return nil, errors.Wrapf(core.ErrAssetNotFound, "%s", key)
	}
	if asset.Type != resourceType {
		return nil, errors.Newf("asset %s is a %s, not a %s", key, asset.Type, resourceType)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, errors.Newf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(filepath.Join(am.dir, filepath.FromSlash(key)), resourceType)
}

// LoadShader returns the bytes of a SPIR-V stage.
func (am *AssetManager) LoadShader(name string) ([]byte, error) {
	res, err := am.LoadAsset(name, metadata.ResourceTypeShader)
	if err != nil {
		return nil, err
	}
	return res.Data.([]byte), nil
}

// LoadMesh decodes a mesh file.
func (am *AssetManager) LoadMesh(name string) (*metadata.MeshData, error) {
	res, err := am.LoadAsset(name, metadata.ResourceTypeMesh)
	if err != nil {
		return nil, err
	}
	return res.Data.(*metadata.MeshData), nil
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	loader, ok := am.loaders[asset.Type]
	if !ok {
		return errors.Newf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Unload(asset)
}

// Watch processes file system events until ctx is done. New directories
// are watched as they appear, deleted files leave the index, and mesh files
// that are created or written are decoded and sent on Meshes.
func (am *AssetManager) Watch(ctx context.Context) error {
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return nil
			}
			am.handleEvent(ctx, e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return nil
			}
			core.LogError("asset watcher: %s", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func (am *AssetManager) handleEvent(ctx context.Context, e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
		}
		return
	}

	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		am.removeAsset(am.key(e.Name))
		return
	}
	if !e.Has(fsnotify.Create) && !e.Has(fsnotify.Write) {
		return
	}

	key := am.key(e.Name)
	if am.handleFileEvent(key) != metadata.ResourceTypeMesh || s == nil {
		return
	}
	if !am.markDelivered(key, s) {
		return
	}
	mesh, err := am.LoadMesh(key)
	if err != nil {
		// A half written file fails here and arrives again with the next write.
		core.LogWarn("skipping mesh %s: %s", key, err)
		am.forgetDelivered(key)
		return
	}
	core.LogInfo("mesh %q loaded from %s", mesh.Name, key)
	select {
	case am.meshes <- mesh:
	case <-ctx.Done():
	}
}

// key turns a watched path into the index key: relative to the asset dir,
// slash separated.
func (am *AssetManager) key(path string) string {
	rel, err := filepath.Rel(am.dir, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

// watchRecursive watches every directory under path and indexes the files.
// A file added before the watch on its directory is in place is still
// indexed by the walk.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return errors.Wrapf(am.fsnotify.Add(walkPath), "watch %s", walkPath)
		}
		am.handleFileEvent(am.key(walkPath))
		return nil
	})
}

// handleFileEvent indexes a created or modified file and returns its type.
func (am *AssetManager) handleFileEvent(key string) metadata.ResourceType {
	assetType := determineAssetType(key)
	if assetType == metadata.ResourceTypeNone {
		return assetType
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[key]
	info.Path = key
	info.Type = assetType
	am.assets[key] = info
	return assetType
}

// markDelivered records the file state and reports whether it differs from
// the last delivered one. Create and Write often arrive for the same
// content.
func (am *AssetManager) markDelivered(key string, s os.FileInfo) bool {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[key]
	if info.size == s.Size() && info.modTime.Equal(s.ModTime()) {
		return false
	}
	info.size, info.modTime = s.Size(), s.ModTime()
	am.assets[key] = info
	return true
}

func (am *AssetManager) forgetDelivered(key string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[key]
	info.size, info.modTime = 0, time.Time{}
	am.assets[key] = info
}

func (am *AssetManager) removeAsset(key string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, key)
}

func (am *AssetManager) Close() error {
	return am.fsnotify.Close()
}

func determineAssetType(key string) metadata.ResourceType {
	switch filepath.Ext(key) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".toml":
		if strings.HasPrefix(key, "meshes/") {
			return metadata.ResourceTypeMesh
		}
	}
	return metadata.ResourceTypeNone
}
