/*
Copyright 2025 The goARRG Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rsig

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"sync"

	"goarrg.com/debug"
)

type cachedRootSignature struct {
	native   NativeRootSignature
	refCount int
}

/*
rootSignatureCache dedupes native root signatures per device, Device implementations
must be comparable. It is the only state shared between root signatures and so the only
thing behind a lock.
*/
type rootSignatureCache struct {
	mtx   sync.Mutex
	cache map[Device]map[string]*cachedRootSignature
}

func (c *rootSignatureCache) MarshalJSON() ([]byte, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	buff := bytes.Buffer{}
	buff.WriteString("[")

	if len(c.cache) > 0 {
		for _, perDevice := range c.cache {
			buff.WriteString("{")
			keys := slices.Sorted(maps.Keys(perDevice))
			if len(keys) > 0 {
				for _, k := range keys {
					buff.WriteString(fmt.Sprintf("%q: %d,", k, perDevice[k].refCount))
				}
				buff.Truncate(buff.Len() - 1)
			}
			buff.WriteString("},")
		}
		buff.Truncate(buff.Len() - 1)
	}

	buff.WriteString("]")
	return buff.Bytes(), nil
}

func (c *rootSignatureCache) createOrRetrieveRootSignature(device Device, id string, serializedDesc []byte) (NativeRootSignature, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	perDevice, ok := c.cache[device]
	if !ok {
		perDevice = map[string]*cachedRootSignature{}
		c.cache[device] = perDevice
	}

	if cached, ok := perDevice[id]; ok {
		cached.refCount++
		return cached.native, nil
	}

	native, err := device.CreateRootSignature(serializedDesc)
	if err != nil {
		if len(perDevice) == 0 {
			delete(c.cache, device)
		}
		return nil, debug.ErrorWrapf(err, "Failed to create root signature")
	}
	perDevice[id] = &cachedRootSignature{native: native, refCount: 1}
	instance.logger.VPrintf("Created root signature: %s", id)
	return native, nil
}

func (c *rootSignatureCache) releaseRootSignature(device Device, id string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	perDevice := c.cache[device]
	cached, ok := perDevice[id]
	if !ok {
		abort("Releasing root signature that is not in the cache: %s", id)
	}

	cached.refCount--
	if cached.refCount > 0 {
		return
	}

	cached.native.Release()
	delete(perDevice, id)
	if len(perDevice) == 0 {
		delete(c.cache, device)
	}
	instance.logger.VPrintf("Released root signature: %s", id)
}

func (c *rootSignatureCache) numCached(device Device) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.cache[device])
}
