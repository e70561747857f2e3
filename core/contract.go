package core

import (
	"fmt"
	"sync"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// hostGasCosts are the flat per-call gas costs for the five named host
// functions; contract semantics beyond this call contract are out of scope.
var hostGasCosts = map[string]uint64{
	"log":           100,
	"get_balance":   200,
	"transfer":      5000,
	"storage_read":  500,
	"storage_write": 2000,
}

// WasmerRunner implements ContractRunner against github.com/wasmerio/wasmer-go,
// exposing a minimal host import module: log, get_balance, transfer,
// storage_read, storage_write.
type WasmerRunner struct {
	state *StateProcessor

	mu        sync.Mutex
	engine    *wasmer.Engine
	store     *wasmer.Store
	instances map[string][]byte
}

// NewWasmerRunner binds a state processor, used by the get_balance host
// call. The transfer, storage_read and storage_write host calls only charge
// gas; they do not touch state (storage_read always returns 0).
func NewWasmerRunner(state *StateProcessor) *WasmerRunner {
	engine := wasmer.NewEngine()
	return &WasmerRunner{
		state:     state,
		engine:    engine,
		store:     wasmer.NewStore(engine),
		instances: make(map[string][]byte),
	}
}

// Deploy checks that code compiles as a WASM module (its host imports are
// resolved only when Call instantiates it) and stores its
// bytecode under an address derived from the deployer + a monotone counter.
func (r *WasmerRunner) Deploy(from string, code []byte, gasLimit uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := wasmer.NewModule(r.store, code); err != nil {
		return "", fmt.Errorf("core: contract deploy: invalid module: %w", err)
	}
	addr := fmt.Sprintf("%s:%d", from, len(r.instances))
	r.instances[addr] = code
	return addr, nil
}

// Call instantiates the deployed module against the host import object and
// invokes the exported fn, enforcing the flat per-call gas costs of the named
// host functions against gasLimit. fn is called with no arguments (args is
// not passed to the module) and Call returns no result data.
func (r *WasmerRunner) Call(from, address, fn string, args []byte, gasLimit uint64) ([]byte, error) {
	r.mu.Lock()
	code, ok := r.instances[address]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("core: contract call: %w: %s", ErrNotFound, address)
	}

	module, err := wasmer.NewModule(r.store, code)
	if err != nil {
		return nil, fmt.Errorf("core: contract call: compile: %w", err)
	}

	var spent uint64
	charge := func(name string) error {
		spent += hostGasCosts[name]
		if spent > gasLimit {
			return fmt.Errorf("core: contract call: out of gas at %s", name)
		}
		return nil
	}

	importObject := wasmer.NewImportObject()
	importObject.Register("env", map[string]wasmer.IntoExtern{
		"log": wasmer.NewFunction(r.store, wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, charge("log")
			}),
		"get_balance": wasmer.NewFunction(r.store, wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32), wasmer.NewValueTypes(wasmer.I64)),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				if err := charge("get_balance"); err != nil {
					return nil, err
				}
				bal, err := r.state.BalanceOf(from)
				if err != nil {
					return nil, err
				}
				return []wasmer.Value{wasmer.NewI64(int64(bal))}, nil
			}),
		"transfer": wasmer.NewFunction(r.store, wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I64), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, charge("transfer")
			}),
		"storage_read": wasmer.NewFunction(r.store, wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32), wasmer.NewValueTypes(wasmer.I32)),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				if err := charge("storage_read"); err != nil {
					return nil, err
				}
				return []wasmer.Value{wasmer.NewI32(0)}, nil
			}),
		"storage_write": wasmer.NewFunction(r.store, wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, charge("storage_write")
			}),
	})

	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, fmt.Errorf("core: contract call: instantiate: %w", err)
	}
	entry, err := instance.Exports.GetFunction(fn)
	if err != nil {
		return nil, fmt.Errorf("core: contract call: %w: export %s", ErrNotFound, fn)
	}
	if _, err := entry(); err != nil {
		return nil, fmt.Errorf("core: contract call: execute %s: %w", fn, err)
	}
	return nil, nil
}

var _ ContractRunner = (*WasmerRunner)(nil)
