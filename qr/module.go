package qr

import (
	"context"
	"log/slog"

	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"
	"go.k6.io/k6/js/modules"

	"github.com/oshokin/xk6-qr/qr/pool"
)

type (
	// RootModule is a module singleton created once per test process.
	// It owns the store pool shared by all VUs.
	RootModule struct {
		// stores hands every VU the same store for equal options.
		stores *pool.Pool

		// logger receives decode failures from every collection.
		logger *slog.Logger
	}

	// ModuleInstance is created per VU.
	// It holds the per-VU JS bindings and a pointer
	// to the RootModule to access the shared stores.
	ModuleInstance struct {
		vu modules.VU
		rm *RootModule
	}
)

// Compile-time interface assertions.
var (
	_ modules.Instance = new(ModuleInstance)
	_ modules.Module   = new(RootModule)
)

// New returns a pointer to a new RootModule instance.
func New() *RootModule {
	return &RootModule{
		stores: pool.New(nil),
		logger: slog.Default().With(slog.String("module", "k6/x/qr")),
	}
}

// NewModuleInstance implements modules.Module.
func (rm *RootModule) NewModuleInstance(vu modules.VU) modules.Instance {
	return &ModuleInstance{
		vu: vu,
		rm: rm,
	}
}

// Exports implements modules.Instance and exposes
// the JavaScript API surface for this module.
// Only openQr() is exported.
func (mi *ModuleInstance) Exports() modules.Exports {
	return modules.Exports{
		Named: map[string]any{
			"openQr": mi.OpenQr,
		},
	}
}

// OpenQr parses user options, acquires the shared store for them and returns
// a per-VU client bound to it.
//
// Every VU that passes equal options gets the same store; different options
// get different stores. The store is closed when the last client on it calls close().
func (mi *ModuleInstance) OpenQr(opts sobek.Value) *sobek.Object {
	client, err := mi.openClient(opts)
	if err != nil {
		common.Throw(mi.vu.Runtime(), classifyError(err))

		return nil
	}

	return mi.vu.Runtime().ToValue(client).ToObject(mi.vu.Runtime())
}

func (mi *ModuleInstance) openClient(opts sobek.Value) (*Client, error) {
	options, err := NewOptionsFrom(mi.vu, opts)
	if err != nil {
		return nil, err
	}

	cfg, err := options.ToStoreConfig()
	if err != nil {
		return nil, err
	}

	valueCodec, err := newCodec(options)
	if err != nil {
		return nil, err
	}

	ctx := mi.vu.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backingStore, err := mi.rm.stores.Acquire(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newClient(mi.vu, mi.rm, cfg, backingStore, valueCodec), nil
}
