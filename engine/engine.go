package engine

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/vkloop/engine/assets"
	"github.com/spaghettifunk/vkloop/engine/core"
	"github.com/spaghettifunk/vkloop/engine/math"
	"github.com/spaghettifunk/vkloop/engine/platform"
	"github.com/spaghettifunk/vkloop/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const metricsLogEveryFrames = 100

type Engine struct {
	config       *ApplicationConfig
	currentStage Stage
	isRunning    atomic.Bool

	bus          *core.EventBus
	platform     *platform.Platform
	assetManager *assets.AssetManager
	renderer     *vulkan.VulkanRenderer
	metrics      *core.FrameMetrics

	reloadPending bool
}

func New(config *ApplicationConfig) (*Engine, error) {
	if err := core.SetLogLevel(config.LogLevel); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	bus := core.NewEventBus()
	return &Engine{
		config:       config,
		currentStage: EngineStageUninitialized,
		bus:          bus,
		platform:     platform.New(bus),
		assetManager: am,
		metrics:      core.NewFrameMetrics(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	// register some events
	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.bus.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.bus.Register(core.EVENT_CODE_KEY_RELEASED, e, e.onKey)
	e.bus.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.bus.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	if err := e.platform.Startup(e.config.Name,
		e.config.StartPosX,
		e.config.StartPosY,
		e.config.StartWidth,
		e.config.StartHeight); err != nil {
		return err
	}
	if err := e.platform.InitVulkan(); err != nil {
		return err
	}

	if err := e.assetManager.Initialize(e.config.Shaders.Directory, e.config.Shaders.HotReload); err != nil {
		core.LogError("failed to index shaders in %s: %s", e.config.Shaders.Directory, err)
		return err
	}

	presentMode, err := vulkan.ParsePresentMode(e.config.Renderer.PresentMode)
	if err != nil {
		return err
	}
	e.renderer = vulkan.New(e.platform, e.assetManager, vulkan.BackendConfig{
		ApplicationName: e.config.Name,
		Validation:      e.config.Renderer.Validation,
		PresentMode:     presentMode,
		ClearColor:      e.config.Renderer.ClearColor,
	})
	vertices, indices, model := GenerateMesh(e.config.Renderer.Mesh)
	if err := e.renderer.Initialize(vertices, indices, model); err != nil {
		e.renderer = nil
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

const planeTiltDegrees = 60

// GenerateMesh builds the configured scene mesh and its base transform. The
// plane is tilted towards the camera, which would otherwise see it edge on.
func GenerateMesh(kind MeshKind) ([]math.Vertex3D, []uint32, *math.Transform) {
	switch kind {
	case MeshPlane:
		vertices, indices := math.GeneratePlane(1.5, 1.5, 4, 4)
		tilt := math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), math.DegToRad(planeTiltDegrees), true)
		return vertices, indices, math.TransformFromPositionRotationScale(math.NewVec3Zero(), tilt, math.NewVec3One())
	default:
		vertices, indices := math.GenerateCube(1)
		return vertices, indices, math.TransformCreate()
	}
}

// Run ticks until the window closes or Stop is called. Shader changes are
// applied between ticks.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			break
		}
		e.drainAssetChanges()
		if e.reloadPending {
			e.reloadPending = false
			if err := e.renderer.ReloadShaders(); err != nil {
				core.LogError("Shader reload failed, shutting down: %s", err)
				return err
			}
		}

		frameStart := time.Now()
		status, err := e.renderer.DrawFrame()
		if err != nil {
			if errors.Is(err, core.ErrWindowClosed) {
				break
			}
			core.LogError("Render failed, shutting down: %s", err)
			return err
		}
		if status == vulkan.FrameSkipped {
			continue
		}

		e.metrics.Update(time.Since(frameStart))
		if e.metrics.TotalFrames()%metricsLogEveryFrames == 0 {
			core.LogDebug("FPS: %.1f, frame time: %.2fms", e.metrics.FPS(), e.metrics.FrameTime())
		}
	}
	return nil
}

// Stop asks Run to return after the current tick. Safe to call from any
// goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
	if e.platform.Window != nil {
		e.platform.RequestClose()
	}
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.renderer != nil {
		e.renderer.Shutdown()
		e.renderer = nil
	}
	if err := e.assetManager.Close(); err != nil && !errors.Is(err, assets.ErrManagerClosed) {
		core.LogWarn("failed to close asset manager: %s", err)
	}
	e.bus.Shutdown()
	return e.platform.Shutdown()
}

// drainAssetChanges turns watcher notifications into events on the main
// goroutine.
func (e *Engine) drainAssetChanges() {
	for {
		select {
		case name := <-e.assetManager.Changes():
			core.LogDebug("asset changed: %s", name)
			e.bus.Fire(core.EVENT_CODE_ASSET_CHANGED, e.assetManager, core.EventContext{})
		default:
			return
		}
	}
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	keyCode := data.Data.U16[0]
	if code == core.EVENT_CODE_KEY_PRESSED && keyCode == platform.KeyEscape {
		e.bus.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	core.LogDebug("Window resize: %d, %d", width, height)
	if e.renderer != nil {
		e.renderer.Resized(width, height)
	}
	return true
}

func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listenerInst interface{}, data core.EventContext) bool {
	e.reloadPending = true
	return true
}
