package engine

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/autopilot-bridge/abi"
	"github.com/wippyai/autopilot-bridge/descriptor"
	"github.com/wippyai/autopilot-bridge/errors"
)

// Class is an instantiated class module.
type Class struct {
	module   api.Module
	compiled wazero.CompiledModule
	name     string
}

// Name returns the binary class name.
func (c *Class) Name() string { return c.name }

// Methods lists the descriptor-keyed exports of the class.
func (c *Class) Methods() []string {
	var keys []string
	prefix := c.name + "."
	for name := range c.module.ExportedFunctionDefinitions() {
		if strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}
	return keys
}

// Method resolves the export for name and descriptor desc and checks that
// its core type equals the lowered descriptor.
func (c *Class) Method(name, desc string) (*Method, error) {
	key := descriptor.Key(c.name, name, desc)

	sig, err := abi.LowerDescriptor(desc)
	if err != nil {
		return nil, errors.MethodNotFound([]string{key}, err)
	}

	fn := c.module.ExportedFunction(key)
	if fn == nil {
		return nil, errors.MethodNotFound([]string{key}, nil)
	}

	def := fn.Definition()
	if err := sig.Check(key, def.ParamTypes(), def.ResultTypes()); err != nil {
		return nil, errors.MethodNotFound([]string{key}, err)
	}

	return &Method{Key: key, Name: name, Sig: sig, fn: fn}, nil
}

// Close releases the class instance.
func (c *Class) Close(ctx context.Context) error {
	if c.module == nil {
		return nil
	}
	err := c.module.Close(ctx)
	if cerr := c.compiled.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	c.module = nil
	return err
}

// Method is a resolved remote operation handle.
type Method struct {
	fn   api.Function
	Sig  *abi.Signature
	Key  string
	Name string
}

// Call invokes the method with flat core arguments. A guest trap is
// returned as a trap error naming the method.
func (m *Method) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	results, err := m.fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Trap(m.Key, err)
	}
	return results, nil
}
