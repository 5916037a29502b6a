package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/vkloop/engine/assets/loaders"
	"github.com/spaghettifunk/vkloop/engine/core"
)

type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeShader
)

var ErrManagerClosed = errors.New("asset manager already closed")

type AssetInfo struct {
	Name       string
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

// AssetManager indexes the compiled shaders of a directory tree and reports
// every created or rewritten shader on Changes.
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		changes:  make(chan string, 16),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	// Register loaders
	am.registerLoader(AssetTypeShader, &loaders.BinaryLoader{})
	return am, nil
}

// Initialize indexes assetsDir and, when watch is set, starts reporting
// changes below it.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	if err := am.indexRecursive(assetsDir, watch); err != nil {
		return err
	}
	if watch {
		go am.start()
	} else {
		close(am.stopped)
	}
	return nil
}

// Changes delivers the names of shaders that were created or rewritten.
// Notifications are dropped while the buffer is full.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadShader loads the compiled shader called name, e.g. "shader.vert".
func (am *AssetManager) LoadShader(name string) (*loaders.Resource, error) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	asset, exists := am.assets[name]
	if !exists {
		return nil, fmt.Errorf("asset not found: %s", name)
	}
	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %d", asset.Type)
	}

	res, err := loader.Load(asset.Path)
	if err != nil {
		return nil, err
	}
	asset.LastLoaded = time.Now()
	am.assets[name] = asset
	return res, nil
}

func (am *AssetManager) Asset(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	asset, ok := am.assets[name]
	return asset, ok
}

// Close stops the watcher. Later calls return ErrManagerClosed.
func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return ErrManagerClosed
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	<-am.stopped
	return am.fsnotify.Close()
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := am.indexRecursive(e.Name, true); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
		}
		return
	}

	switch {
	case e.Has(fsnotify.Create), e.Has(fsnotify.Write):
		if name, ok := am.handleFileEvent(e.Name); ok {
			am.notify(name)
		}
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		am.removeAsset(e.Name)
	}
}

func (am *AssetManager) notify(name string) {
	select {
	case am.changes <- name:
	default:
		core.LogDebug("dropping change notification for %s", name)
	}
}

// indexRecursive records every asset below path and optionally adds each
// directory to the watch list.
func (am *AssetManager) indexRecursive(path string, watch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if watch {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (string, bool) {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return "", false
	}
	name := assetName(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[name] = AssetInfo{
		Name: name,
		Path: path,
		Type: assetType,
	}
	return name, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	name := assetName(path)
	if asset, ok := am.assets[name]; ok && asset.Path == path {
		delete(am.assets, name)
	}
}

func assetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".spv":
		return AssetTypeShader
	default:
		return AssetTypeNone
	}
}
