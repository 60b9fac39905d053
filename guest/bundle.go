package guest

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultClass is the binary name of the class the bridge loads.
const DefaultClass = "autopilot/interfaces/AutoPilotC"

// RuntimeFile is the file name WriteBundle gives the runtime image.
const RuntimeFile = "runtime.wasm"

// Bundle describes a generated runtime image and class bundle.
type Bundle struct {
	RuntimePath string
	BundleDir   string
	ClassPath   string
}

// WriteBundle writes the reference runtime image to dir/runtime.wasm and
// the reference class to dir/bundle/<class>.wasm.
func WriteBundle(dir, class string, ropts RuntimeOptions, copts ClassOptions) (Bundle, error) {
	if class == "" {
		class = DefaultClass
	}

	b := Bundle{
		RuntimePath: filepath.Join(dir, RuntimeFile),
		BundleDir:   filepath.Join(dir, "bundle"),
	}
	b.ClassPath = filepath.Join(b.BundleDir, filepath.FromSlash(class)+".wasm")

	if err := os.MkdirAll(filepath.Dir(b.ClassPath), 0o755); err != nil {
		return Bundle{}, fmt.Errorf("create bundle dir: %w", err)
	}
	if err := os.WriteFile(b.RuntimePath, Runtime(ropts), 0o644); err != nil {
		return Bundle{}, fmt.Errorf("write runtime image: %w", err)
	}
	if err := os.WriteFile(b.ClassPath, Class(class, copts), 0o644); err != nil {
		return Bundle{}, fmt.Errorf("write class module: %w", err)
	}
	return b, nil
}
