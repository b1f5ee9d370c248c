package looplib

import (
	"sync"
)

// VMap is a mutex-guarded generic map. The cache uses one to track
// in-flight downloads across the rotation loop, the prefetch command
// and the status surface.
type VMap[kT comparable, vT any] struct {
	kv map[kT]vT
	mu sync.RWMutex
}

// NewVMap returns an empty ready-to-use VMap.
func NewVMap[kT comparable, vT any]() VMap[kT, vT] {
	return VMap[kT, vT]{
		kv: make(map[kT]vT),
	}
}

// Set stores val under key.
func (vm *VMap[kT, vT]) Set(key kT, val vT) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.kv[key] = val
}

// Get returns the value under key, or the zero value when absent.
func (vm *VMap[kT, vT]) Get(key kT) vT {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.kv[key]
}

// GetOK returns the value under key and whether it was present.
func (vm *VMap[kT, vT]) GetOK(key kT) (vT, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	val, ok := vm.kv[key]
	return val, ok
}

// Len returns the number of stored entries.
func (vm *VMap[kT, vT]) Len() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.kv)
}

// Range calls f for each entry under the read lock until f returns
// false. f must not call back into the map.
func (vm *VMap[kT, vT]) Range(f func(key kT, val vT) bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for k, v := range vm.kv {
		if !f(k, v) {
			return
		}
	}
}

// Delete removes key; absent keys are a no-op.
func (vm *VMap[kT, vT]) Delete(key kT) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	delete(vm.kv, key)
}
