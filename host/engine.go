package host

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/fsplugin"
	"github.com/wippyai/fsplugin/errors"
)

// Engine loads plugins. Each plugin gets its own wazero runtime so the
// env import surface can differ per instance; compiled code is shared
// through the engine's compilation cache.
type Engine struct {
	cache wazero.CompilationCache
}

// NewEngine creates an engine with a fresh compilation cache.
func NewEngine() *Engine {
	return &Engine{cache: wazero.NewCompilationCache()}
}

// Close releases the compilation cache. Plugins loaded from this engine
// must be closed first.
func (e *Engine) Close(ctx context.Context) error {
	return e.cache.Close(ctx)
}

// Load compiles and instantiates a plugin binary, constructs its
// instance via plugin_new, and discovers the shared buffers.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte, opts ...Option) (*Plugin, error) {
	o := buildOptions(opts)
	log := o.log.With(zap.String("plugin", o.name))

	rcfg := wazero.NewRuntimeConfig().WithCompilationCache(e.cache)
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)
	ok := false
	defer func() {
		if !ok {
			r.Close(ctx)
		}
	}()

	// Guests are wasip1 reactors; give them WASI plus the env imports.
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, errors.IO(err, "instantiate WASI")
	}
	env := &hostEnv{root: o.hostRoot, client: o.httpClient, log: log}
	if err := env.instantiate(ctx, r); err != nil {
		return nil, err
	}

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.InvalidInput("compile plugin module: %v", err)
	}
	mcfg := wazero.NewModuleConfig().
		WithName(o.name).
		WithStartFunctions("_initialize")
	mod, err := r.InstantiateModule(ctx, compiled, mcfg)
	if err != nil {
		return nil, errors.IO(err, "instantiate plugin module")
	}

	funcs := make(map[string]guestFunc, len(exportNames))
	for _, name := range exportNames {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return nil, errors.InvalidInput("plugin does not export %q", name)
		}
		funcs[name] = wrapFunc(fn)
	}

	p := &Plugin{
		mem:     wazeroMemory{mem: mod.Memory()},
		alloc:   guestAllocator{ctx: ctx, malloc: mod.ExportedFunction(fsplugin.ExportMalloc), free: mod.ExportedFunction(fsplugin.ExportFree)},
		funcs:   funcs,
		log:     log,
		runtime: r,
	}

	created, err := p.call(ctx, fsplugin.ExportPluginNew)
	if err != nil {
		return nil, err
	}
	if created == 0 {
		return nil, errors.Other("plugin module has no registered plugin")
	}
	if err := p.discoverBuffers(ctx); err != nil {
		return nil, err
	}

	log.Debug("plugin loaded",
		zap.Uint32("input_buffer", p.inPtr),
		zap.Uint32("output_buffer", p.outPtr),
		zap.Uint32("buffer_size", p.bufSize))
	ok = true
	return p, nil
}

// exportNames is every entry point the loader resolves up front, so a
// misbuilt plugin fails at load rather than first use.
var exportNames = []string{
	fsplugin.ExportPluginNew,
	fsplugin.ExportPluginName,
	fsplugin.ExportPluginReadme,
	fsplugin.ExportPluginConfigParams,
	fsplugin.ExportPluginValidate,
	fsplugin.ExportPluginInitialize,
	fsplugin.ExportPluginShutdown,
	fsplugin.ExportFSRead,
	fsplugin.ExportFSWrite,
	fsplugin.ExportFSCreate,
	fsplugin.ExportFSMkdir,
	fsplugin.ExportFSRemove,
	fsplugin.ExportFSRemoveAll,
	fsplugin.ExportFSStat,
	fsplugin.ExportFSReaddir,
	fsplugin.ExportFSRename,
	fsplugin.ExportFSChmod,
	fsplugin.ExportOpen,
	fsplugin.ExportHandleRead,
	fsplugin.ExportHandleReadAt,
	fsplugin.ExportHandleWrite,
	fsplugin.ExportHandleWriteAt,
	fsplugin.ExportHandleSeek,
	fsplugin.ExportHandleSync,
	fsplugin.ExportHandleStat,
	fsplugin.ExportHandleInfo,
	fsplugin.ExportHandleClose,
	fsplugin.ExportMalloc,
	fsplugin.ExportFree,
	fsplugin.ExportInputBufferPtr,
	fsplugin.ExportOutputBufferPtr,
	fsplugin.ExportSharedBufSize,
}
