package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/autopilot-bridge/errors"
	"github.com/wippyai/autopilot-bridge/wasm"
)

// DefaultMemoryLimitPages caps guest memory at 4 GiB.
const DefaultMemoryLimitPages = 65536

// LibraryModuleName is the module name the runtime image is instantiated
// under. Class modules import their memory from it.
const LibraryModuleName = "env"

// Config holds configuration for engine creation
type Config struct {
	Stdout io.Writer
	Stderr io.Writer

	// CompilationCacheDir enables an on-disk compilation cache shared by
	// every engine pointing at the same directory.
	CompilationCacheDir string

	// BundleDir is mounted as the guest filesystem root and is where class
	// modules are loaded from.
	BundleDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means DefaultMemoryLimitPages.
	MemoryLimitPages uint32
}

// Engine owns one wazero runtime.
type Engine struct {
	runtime      wazero.Runtime
	cache        wazero.CompilationCache
	cfg          Config
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// New creates an engine. A nil cfg uses defaults.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	e := &Engine{}
	if cfg != nil {
		e.cfg = *cfg
	}

	pages := e.cfg.MemoryLimitPages
	if pages == 0 {
		pages = DefaultMemoryLimitPages
	}
	runtimeCfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(pages)

	if e.cfg.CompilationCacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(e.cfg.CompilationCacheDir)
		if err != nil {
			return nil, errors.RuntimeCreation(fmt.Errorf("compilation cache: %w", err))
		}
		e.cache = cache
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	Logger().Debug("engine created",
		zap.Uint32("memory_limit_pages", pages),
		zap.String("cache_dir", e.cfg.CompilationCacheDir))
	return e, nil
}

// Close releases the runtime and every module instantiated in it.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// InitWASI instantiates the WASI singleton for this engine's runtime.
// Safe for concurrent calls.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasiModuleName) == nil {
		if _, err := instantiateWASI(ctx, e.runtime); err != nil {
			return fmt.Errorf("instantiate WASI: %w", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// CompiledLibrary is a compiled runtime image that has not been started yet.
type CompiledLibrary struct {
	compiled wazero.CompiledModule
	path     string
}

// CompileLibrary reads and compiles the runtime image at path. Any failure
// is reported as library_not_found.
func (e *Engine) CompileLibrary(ctx context.Context, path string) (*CompiledLibrary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.LibraryNotFound(path, err)
	}
	if !wasm.HasMagic(data) {
		return nil, errors.LibraryNotFound(path, fmt.Errorf("not a WebAssembly module"))
	}

	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.LibraryNotFound(path, err)
	}
	return &CompiledLibrary{compiled: compiled, path: path}, nil
}

// MissingEntryPoints lists the exports the bridge needs but the image
// lacks: an exported memory and an allocator.
func (c *CompiledLibrary) MissingEntryPoints() []string {
	var missing []string
	if _, ok := c.compiled.ExportedMemories()[MemoryExport]; !ok {
		missing = append(missing, MemoryExport)
	}

	exports := c.compiled.ExportedFunctions()
	found := false
	for _, name := range allocNames {
		if _, ok := exports[name]; ok {
			found = true
			break
		}
	}
	if !found {
		missing = append(missing, CabiRealloc+"|"+simpleMalloc)
	}
	return missing
}

// Path returns the file the library was compiled from.
func (c *CompiledLibrary) Path() string { return c.path }

// Close releases the compiled code.
func (c *CompiledLibrary) Close(ctx context.Context) error {
	return c.compiled.Close(ctx)
}

// InstantiateLibrary starts the runtime image under LibraryModuleName with
// WASI, the configured stdio and the bundle directory mounted at "/".
func (e *Engine) InstantiateLibrary(ctx context.Context, c *CompiledLibrary) (*Library, error) {
	if err := e.InitWASI(ctx); err != nil {
		return nil, errors.RuntimeCreation(err)
	}

	modCfg := e.moduleConfig(LibraryModuleName).WithStartFunctions("_initialize")
	if e.cfg.BundleDir != "" {
		modCfg = modCfg.WithFSConfig(wazero.NewFSConfig().WithDirMount(e.cfg.BundleDir, "/"))
	}

	instance, err := e.runtime.InstantiateModule(ctx, c.compiled, modCfg)
	if err != nil {
		return nil, errors.RuntimeCreation(fmt.Errorf("instantiate failed: %w", err))
	}

	mem := instance.ExportedMemory(MemoryExport)
	if mem == nil {
		_ = instance.Close(ctx)
		return nil, errors.RuntimeCreation(fmt.Errorf("runtime library exports no memory"))
	}

	lib := &Library{
		engine: e,
		module: instance,
		memory: &Memory{mem: mem},
		alloc:  newAllocator(instance),
	}
	Logger().Debug("runtime library started",
		zap.String("path", c.path),
		zap.Uint32("memory_bytes", mem.Size()),
		zap.String("allocator", lib.alloc.convention()))
	return lib, nil
}

func (e *Engine) moduleConfig(name string) wazero.ModuleConfig {
	modCfg := wazero.NewModuleConfig().WithName(name)
	if e.cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(e.cfg.Stdout)
	}
	if e.cfg.Stderr != nil {
		modCfg = modCfg.WithStderr(e.cfg.Stderr)
	}
	return modCfg
}

// Library is a running runtime image. It is NOT safe for concurrent use;
// callers serialize access to it and every class loaded from it.
type Library struct {
	engine *Engine
	module api.Module
	memory *Memory
	alloc  *Allocator
}

// Memory returns the library's linear memory, shared with its classes.
func (l *Library) Memory() *Memory { return l.memory }

// Allocator returns the guest allocator.
func (l *Library) Allocator() *Allocator { return l.alloc }

// ClassPath returns the bundle file a class is loaded from.
func (l *Library) ClassPath(class string) string {
	return filepath.Join(l.engine.cfg.BundleDir, filepath.FromSlash(class)+".wasm")
}

// LoadClass compiles and instantiates the class module for a binary class
// name. The module must import its memory from the library.
func (l *Library) LoadClass(ctx context.Context, class string) (*Class, error) {
	path := l.ClassPath(class)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.TypeNotFound(class, err)
	}
	if !wasm.HasMagic(data) {
		return nil, errors.TypeNotFound(class, fmt.Errorf("%s is not a WebAssembly module", path))
	}

	compiled, err := l.engine.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.TypeNotFound(class, err)
	}

	if !importsLibraryMemory(compiled) {
		_ = compiled.Close(ctx)
		return nil, errors.TypeNotFound(class,
			fmt.Errorf("class does not import %s.%s", LibraryModuleName, MemoryExport))
	}

	instance, err := l.engine.runtime.InstantiateModule(ctx, compiled,
		l.engine.moduleConfig(class).WithStartFunctions("_initialize"))
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.TypeNotFound(class, err)
	}

	Logger().Debug("class loaded", zap.String("class", class), zap.String("path", path))
	return &Class{name: class, module: instance, compiled: compiled}, nil
}

// Close releases the library instance.
func (l *Library) Close(ctx context.Context) error {
	if l.module == nil {
		return nil
	}
	err := l.module.Close(ctx)
	l.module = nil
	l.memory = nil
	l.alloc = nil
	return err
}

func importsLibraryMemory(compiled wazero.CompiledModule) bool {
	for _, def := range compiled.ImportedMemories() {
		module, name, ok := def.Import()
		if ok && module == LibraryModuleName && name == MemoryExport {
			return true
		}
	}
	return false
}
