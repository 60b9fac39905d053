package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const wasiModuleName = wasi_snapshot_preview1.ModuleName

// instantiateWASI instantiates WASI preview1 so runtime images built for
// wasm32-wasi reactors can link their stdio and filesystem imports.
func instantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(wasiModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}
