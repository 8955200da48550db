package qr

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/grafana/sobek"
	"github.com/stretchr/testify/require"
	"go.k6.io/k6/js/modulestest"
)

func newTestInstance(t *testing.T, rootModule *RootModule) (*modulestest.Runtime, *ModuleInstance) {
	t.Helper()

	runtime := modulestest.NewRuntime(t)
	moduleInstance, ok := rootModule.NewModuleInstance(runtime.VU).(*ModuleInstance)
	require.True(t, ok)

	return runtime, moduleInstance
}

func openTestClient(t *testing.T, runtime *modulestest.Runtime, mi *ModuleInstance, options map[string]any) *Client {
	t.Helper()

	client, err := mi.openClient(runtime.VU.Runtime().ToValue(options))
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestOpenQrConcurrentInitializationSharesStore(t *testing.T) {
	t.Parallel()

	rootModule := New()

	const vus = 8

	clients := make([]*Client, vus)

	var wg sync.WaitGroup

	for i := range vus {
		runtime, moduleInstance := newTestInstance(t, rootModule)
		options := runtime.VU.Runtime().ToValue(map[string]any{
			"backend":       BackendMemory,
			"serialization": SerializationJSON,
		})

		wg.Add(1)

		go func() {
			defer wg.Done()

			client, err := moduleInstance.openClient(options)
			if err == nil {
				clients[i] = client
			}
		}()
	}

	wg.Wait()

	for _, client := range clients {
		require.NotNil(t, client, "every VU should open a client")
		require.Same(t, clients[0].store, client.store, "equal options must share one backing store")
	}

	require.Equal(t, 1, rootModule.stores.Len())

	for _, client := range clients {
		require.NoError(t, client.Close())
	}

	require.Equal(t, 0, rootModule.stores.Len(), "the last close must release the store")
}

func TestOpenQrSeparatesDifferentOptions(t *testing.T) {
	t.Parallel()

	rootModule := New()
	runtime, moduleInstance := newTestInstance(t, rootModule)

	memoryClient := openTestClient(t, runtime, moduleInstance, map[string]any{
		"backend": BackendMemory,
	})
	diskClient := openTestClient(t, runtime, moduleInstance, map[string]any{
		"backend": BackendDisk,
		"path":    filepath.Join(t.TempDir(), "qr.db"),
	})
	shardedClient := openTestClient(t, runtime, moduleInstance, map[string]any{
		"backend": BackendMemory,
		"memory":  map[string]any{"shardCount": 3},
	})

	require.NotSame(t, memoryClient.store, diskClient.store)
	require.NotSame(t, memoryClient.store, shardedClient.store)
	require.Equal(t, 3, rootModule.stores.Len())
}

func TestOpenQrIgnoresOtherBackendSettings(t *testing.T) {
	t.Parallel()

	rootModule := New()
	runtime, moduleInstance := newTestInstance(t, rootModule)

	plain := openTestClient(t, runtime, moduleInstance, map[string]any{
		"backend": BackendMemory,
	})
	withDiskTuning := openTestClient(t, runtime, moduleInstance, map[string]any{
		"backend": "MEMORY",
		"disk":    map[string]any{"timeout": 500},
	})

	require.Same(t, plain.store, withDiskTuning.store)
}

func TestOpenQrAllowsEquivalentDiskPaths(t *testing.T) {
	t.Parallel()

	rootModule := New()
	runtime, moduleInstance := newTestInstance(t, rootModule)

	tempDir := t.TempDir()
	absPath := filepath.Join(tempDir, "qr.db")
	extraSegmentsPath := tempDir + "/./sub/../qr.db"

	absClient := openTestClient(t, runtime, moduleInstance, map[string]any{
		"backend": BackendDisk,
		"path":    absPath,
	})
	relClient := openTestClient(t, runtime, moduleInstance, map[string]any{
		"backend": BackendDisk,
		"path":    extraSegmentsPath,
	})

	require.Same(t, absClient.store, relClient.store)
}

func TestOpenQrRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	diskPath := filepath.Join(t.TempDir(), "qr.db")

	testCases := []struct {
		name    string
		options map[string]any
		expect  ErrorName
	}{
		{
			name:    "unknown backend",
			options: map[string]any{"backend": "etcd"},
			expect:  OptionsInvalidError,
		},
		{
			name:    "unknown serialization",
			options: map[string]any{"serialization": "yaml"},
			expect:  OptionsInvalidError,
		},
		{
			name:    "unknown compression",
			options: map[string]any{"compression": "gzip"},
			expect:  OptionsInvalidError,
		},
		{
			name:    "bad freelist",
			options: map[string]any{
				"backend": BackendDisk,
				"path":    diskPath,
				"disk":    map[string]any{"freelistType": "tree"},
			},
			expect: OptionsInvalidError,
		},
		{
			name:    "negative redis pool",
			options: map[string]any{"backend": BackendRedis, "redis": map[string]any{"poolSize": -1}},
			expect:  OptionsInvalidError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			runtime, moduleInstance := newTestInstance(t, New())

			_, err := moduleInstance.openClient(runtime.VU.Runtime().ToValue(tc.options))
			require.Error(t, err)

			var qrErr *Error

			require.ErrorAs(t, classifyError(err), &qrErr)
			require.Equal(t, tc.expect, qrErr.Name)

			require.Panics(t, func() {
				moduleInstance.OpenQr(runtime.VU.Runtime().ToValue(tc.options))
			})
		})
	}
}

func TestClientScriptRoundTrip(t *testing.T) {
	t.Parallel()

	runtime, moduleInstance := newTestInstance(t, New())
	vm := runtime.VU.Runtime()

	require.NoError(t, vm.Set("openQr", moduleInstance.OpenQr))

	_, err := runtime.RunOnEventLoop(`
		globalThis.popped = [];
		globalThis.ranked = [];

		const client = openQr({ backend: "memory" });
		const queue = client.queue("jobs");
		const pq = client.priorityQueue("ranked");

		queue.push("a")
			.then(() => queue.push("b"))
			.then(() => queue.pop())
			.then((v) => { popped.push(v); return queue.pop(); })
			.then((v) => { popped.push(v); return queue.pop(); })
			.then((v) => { popped.push(v); });

		pq.push("foo", 1)
			.then(() => pq.push("bar", 0))
			.then(() => pq.popWithScore())
			.then((item) => { ranked.push(item.value, item.score); return pq.pop(); })
			.then((v) => { ranked.push(v); });

		pq.push("bad", NaN).catch((e) => { globalThis.scoreError = e.name; });
		queue.popWait(20).then((v) => { globalThis.waited = v; });
	`)
	require.NoError(t, err)

	require.Equal(t, []any{"a", "b", nil}, vm.Get("popped").Export())
	require.Equal(t, []any{"bar", int64(0), "foo"}, vm.Get("ranked").Export())
	require.Equal(t, string(InvalidScoreError), vm.Get("scoreError").String())
	require.True(t, sobek.IsNull(vm.Get("waited")))
}

func TestClientRejectsCallsAfterClose(t *testing.T) {
	t.Parallel()

	runtime, moduleInstance := newTestInstance(t, New())
	vm := runtime.VU.Runtime()

	require.NoError(t, vm.Set("openQr", moduleInstance.OpenQr))

	_, err := runtime.RunOnEventLoop(`
		const client = openQr();
		const stack = client.stack("s");
		client.close();
		client.close();
		stack.push(1).catch((e) => { globalThis.closedError = e.name; });
	`)
	require.NoError(t, err)
	require.Equal(t, string(StoreClosedError), vm.Get("closedError").String())
}

func TestCappedCollectionRequiresPositiveSize(t *testing.T) {
	t.Parallel()

	runtime, moduleInstance := newTestInstance(t, New())
	client := openTestClient(t, runtime, moduleInstance, map[string]any{})
	vm := runtime.VU.Runtime()

	require.Panics(t, func() {
		client.CappedCollection(vm.ToValue("recent"), vm.ToValue(0))
	})

	require.NotPanics(t, func() {
		client.CappedCollection(vm.ToValue("recent"), vm.ToValue(3))
	})
}
