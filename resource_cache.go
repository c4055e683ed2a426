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

	"goarrg.com/debug"
	"goarrg.com/rhi/rsig/internal/util"
)

// InvalidDescriptorOffset marks tables without space in the cache's shader visible heaps.
const InvalidDescriptorOffset = ^uint32(0)

type CachedResource struct {
	Type CachedResourceType
	// One of Buffer, BufferView, TextureView or Sampler depending on Type, nil when unbound.
	Object              any
	CPUDescriptorHandle CPUDescriptorHandle
}

func (r *CachedResource) isBound() bool {
	return r.Type != CachedResourceTypeUnknown
}

// stateTarget returns the resource whose state matters for r and the state it must be in, nil for samplers.
func (r *CachedResource) stateTarget() (StatefulResource, ResourceState) {
	var target StatefulResource
	switch r.Type {
	case CachedResourceTypeCBV:
		target = r.Object.(Buffer)
	case CachedResourceTypeBufSRV, CachedResourceTypeBufUAV:
		target = r.Object.(BufferView).Buffer()
	case CachedResourceTypeTexSRV, CachedResourceTypeTexUAV:
		target = r.Object.(TextureView).Texture()
	default:
		return nil, ResourceStateCommon
	}
	state, err := RequiredStateFromRangeType(r.Type.rangeType())
	if err != nil {
		abort("%s", err)
	}
	return target, state
}

func (r CachedResource) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"type\": %q,", r.Type.String()))
	if target, _ := r.stateTarget(); target != nil {
		buff.WriteString(fmt.Sprintf("\"resource\": %q,", target.Name()))
	}
	buff.WriteString(fmt.Sprintf("\"cpuDescriptorHandle\": %q", toHex(r.CPUDescriptorHandle)))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

type CacheTable struct {
	resources        []CachedResource
	heapType         DescriptorHeapType
	variableType     VariableType
	isRootView       bool
	tableStartOffset uint32
}

func (t *CacheTable) Size() uint32 {
	return uint32(len(t.resources))
}

// StartOffset is the offset of the table in the cache's shader visible heap or InvalidDescriptorOffset.
func (t *CacheTable) StartOffset() uint32 {
	return t.tableStartOffset
}

func (t *CacheTable) Resource(offset uint32) *CachedResource {
	if offset >= uint32(len(t.resources)) {
		abort("Offset %d is out of range of cache table with %d resources", offset, len(t.resources))
	}
	return &t.resources[offset]
}

func (t *CacheTable) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"heapType\": %q,", t.heapType.String()))
	buff.WriteString(fmt.Sprintf("\"variableType\": %q,", t.variableType.String()))
	buff.WriteString(fmt.Sprintf("\"isRootView\": %t,", t.isRootView))
	buff.WriteString(fmt.Sprintf("\"tableStartOffset\": %q,", toHex(t.tableStartOffset)))

	buff.WriteString("\"resources\": [")
	if len(t.resources) > 0 {
		for _, r := range t.resources {
			buff.WriteString(fmt.Sprintf("%s,", jsonString(r)))
		}
		buff.Truncate(buff.Len() - 1)
	}
	buff.WriteString("]")

	buff.WriteString("}")
	return buff.Bytes(), nil
}

/*
ShaderResourceCache holds what is bound to every slot of a root signature, tables are indexed
by root index. Static and mutable tables also own space in shader visible heaps that is kept
in sync with the bound descriptors. Not safe for concurrent use.
*/
type ShaderResourceCache struct {
	noCopy util.NoCopy

	device Device
	tables []CacheTable

	cbvSrvUavHeapSpace *DescriptorHeapAllocation
	samplerHeapSpace   *DescriptorHeapAllocation
}

// InitResourceCache creates a cache shaped after the finalized layout.
func (s *RootSignature) InitResourceCache(device Device) (*ShaderResourceCache, error) {
	s.noCopy.Check()
	s.assertFinalized()
	if device != s.device {
		abort("Resource cache must be created on the device the root signature was finalized with")
	}

	cache := &ShaderResourceCache{
		device: device,
		tables: make([]CacheTable, s.params.nextRootIndex()),
	}

	s.params.processRootTables(func(_ int, tbl rootTable, _ []DescriptorRange, heapType DescriptorHeapType) {
		cache.tables[tbl.rootIndex] = CacheTable{
			resources:        make([]CachedResource, tbl.tableSize),
			heapType:         heapType,
			variableType:     tbl.variableType,
			tableStartOffset: InvalidDescriptorOffset,
		}
	})
	for _, v := range s.params.views {
		cache.tables[v.rootIndex] = CacheTable{
			resources:        make([]CachedResource, 1),
			heapType:         DescriptorHeapTypeCbvSrvUav,
			variableType:     v.variableType,
			isRootView:       true,
			tableStartOffset: InvalidDescriptorOffset,
		}
	}

	var totalShaderVisible [numShaderVisibleHeapTypes]uint32
	for h := range totalShaderVisible {
		totalShaderVisible[h] = s.totalSlots[h][VariableTypeStatic] + s.totalSlots[h][VariableTypeMutable]
	}

	heapSpace := [numShaderVisibleHeapTypes]**DescriptorHeapAllocation{&cache.cbvSrvUavHeapSpace, &cache.samplerHeapSpace}
	for h, total := range totalShaderVisible {
		if total == 0 {
			continue
		}
		alloc, err := device.AllocateGPUDescriptors(DescriptorHeapType(h), total)
		if err != nil {
			cache.cbvSrvUavHeapSpace.Release()
			return nil, debug.ErrorWrapf(err, "Failed to allocate %d %s descriptors for resource cache", total, DescriptorHeapType(h))
		}
		if alloc.NumHandles() != total {
			abort("Allocated %d %s descriptors, requested %d", alloc.NumHandles(), DescriptorHeapType(h), total)
		}
		*heapSpace[h] = alloc
	}

	var offsets [numShaderVisibleHeapTypes]uint32
	s.params.processRootTables(func(_ int, tbl rootTable, _ []DescriptorRange, heapType DescriptorHeapType) {
		if tbl.variableType == VariableTypeDynamic {
			return
		}
		cache.tables[tbl.rootIndex].tableStartOffset = offsets[heapType]
		offsets[heapType] += tbl.tableSize
	})
	if offsets != totalShaderVisible {
		abort("Packed %v shader visible descriptors, expected %v", offsets, totalShaderVisible)
	}

	cache.noCopy.Init()
	return cache, nil
}

func (c *ShaderResourceCache) NumTables() int {
	c.noCopy.Check()
	return len(c.tables)
}

func (c *ShaderResourceCache) RootTable(rootIndex uint32) *CacheTable {
	c.noCopy.Check()
	if rootIndex >= uint32(len(c.tables)) {
		abort("Root index %d is out of range of cache with %d tables", rootIndex, len(c.tables))
	}
	return &c.tables[rootIndex]
}

func (c *ShaderResourceCache) heapSpace(heapType DescriptorHeapType) *DescriptorHeapAllocation {
	switch heapType {
	case DescriptorHeapTypeCbvSrvUav:
		return c.cbvSrvUavHeapSpace
	case DescriptorHeapTypeSampler:
		return c.samplerHeapSpace
	}
	abort("Unknown DescriptorHeapType: %d", heapType)
	return nil
}

func (c *ShaderResourceCache) shaderVisibleTable(heapType DescriptorHeapType, rootIndex uint32) (*DescriptorHeapAllocation, *CacheTable) {
	c.noCopy.Check()
	tbl := c.RootTable(rootIndex)
	if tbl.heapType != heapType {
		abort("Root table at index %d is a %s table, not %s", rootIndex, tbl.heapType, heapType)
	}
	if tbl.tableStartOffset == InvalidDescriptorOffset {
		abort("Root table at index %d has no space in the shader visible heap", rootIndex)
	}
	return c.heapSpace(heapType), tbl
}

func (c *ShaderResourceCache) ShaderVisibleTableGPUHandle(heapType DescriptorHeapType, rootIndex uint32) GPUDescriptorHandle {
	alloc, tbl := c.shaderVisibleTable(heapType, rootIndex)
	return alloc.GPUHandle(tbl.tableStartOffset)
}

func (c *ShaderResourceCache) ShaderVisibleTableCPUHandle(heapType DescriptorHeapType, rootIndex, offset uint32) CPUDescriptorHandle {
	alloc, tbl := c.shaderVisibleTable(heapType, rootIndex)
	if offset >= tbl.Size() {
		abort("Offset %d is out of range of root table at index %d with %d descriptors", offset, rootIndex, tbl.Size())
	}
	return alloc.CPUHandle(tbl.tableStartOffset + offset)
}

// DescriptorHeaps returns the heaps the cache's shader visible space lives in, unset when the cache has none.
func (c *ShaderResourceCache) DescriptorHeaps() ShaderDescriptorHeaps {
	c.noCopy.Check()
	return ShaderDescriptorHeaps{
		CbvSrvUav: c.cbvSrvUavHeapSpace.Heap(),
		Sampler:   c.samplerHeapSpace.Heap(),
	}
}

func (c *ShaderResourceCache) setResource(rootIndex, offset uint32, res CachedResource) {
	c.noCopy.Check()
	tbl := c.RootTable(rootIndex)
	if res.isBound() {
		heapType, err := HeapTypeFromRangeType(res.Type.rangeType())
		if err != nil {
			abort("%s", err)
		}
		if heapType != tbl.heapType {
			abort("Cannot bind %s to %s root table at index %d", res.Type, tbl.heapType, rootIndex)
		}
		if tbl.isRootView && res.Type != CachedResourceTypeCBV {
			abort("Cannot bind %s to root view at index %d", res.Type, rootIndex)
		}
	}

	*tbl.Resource(offset) = res

	if tbl.tableStartOffset != InvalidDescriptorOffset && (res.CPUDescriptorHandle != 0 || !res.isBound()) {
		c.device.CopyDescriptor(c.heapSpace(tbl.heapType).CPUHandle(tbl.tableStartOffset+offset), res.CPUDescriptorHandle, tbl.heapType)
	}
}

// SetConstantBuffer binds a CBV, cbvHandle may be zero for root views as they bind the buffer's address.
func (c *ShaderResourceCache) SetConstantBuffer(rootIndex, offset uint32, buffer Buffer, cbvHandle CPUDescriptorHandle) {
	c.setResource(rootIndex, offset, CachedResource{Type: CachedResourceTypeCBV, Object: buffer, CPUDescriptorHandle: cbvHandle})
}

func (c *ShaderResourceCache) SetBufferSRV(rootIndex, offset uint32, view BufferView) {
	c.setResource(rootIndex, offset, CachedResource{Type: CachedResourceTypeBufSRV, Object: view, CPUDescriptorHandle: view.CPUDescriptorHandle()})
}

func (c *ShaderResourceCache) SetBufferUAV(rootIndex, offset uint32, view BufferView) {
	c.setResource(rootIndex, offset, CachedResource{Type: CachedResourceTypeBufUAV, Object: view, CPUDescriptorHandle: view.CPUDescriptorHandle()})
}

func (c *ShaderResourceCache) SetTextureSRV(rootIndex, offset uint32, view TextureView) {
	c.setResource(rootIndex, offset, CachedResource{Type: CachedResourceTypeTexSRV, Object: view, CPUDescriptorHandle: view.CPUDescriptorHandle()})
}

func (c *ShaderResourceCache) SetTextureUAV(rootIndex, offset uint32, view TextureView) {
	c.setResource(rootIndex, offset, CachedResource{Type: CachedResourceTypeTexUAV, Object: view, CPUDescriptorHandle: view.CPUDescriptorHandle()})
}

func (c *ShaderResourceCache) SetSampler(rootIndex, offset uint32, sampler Sampler) {
	c.setResource(rootIndex, offset, CachedResource{Type: CachedResourceTypeSampler, Object: sampler, CPUDescriptorHandle: sampler.CPUDescriptorHandle()})
}

// ResetResource unbinds a slot, the shader visible copy of a static or mutable slot is cleared.
func (c *ShaderResourceCache) ResetResource(rootIndex, offset uint32) {
	c.setResource(rootIndex, offset, CachedResource{})
}

func (c *ShaderResourceCache) Destroy() {
	c.noCopy.Check()
	c.cbvSrvUavHeapSpace.Release()
	c.samplerHeapSpace.Release()
	c.cbvSrvUavHeapSpace = nil
	c.samplerHeapSpace = nil
	c.tables = nil
	c.noCopy.Close()
}

func (c *ShaderResourceCache) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString("\"tables\": [")
	if len(c.tables) > 0 {
		for i := range c.tables {
			buff.WriteString(fmt.Sprintf("%s,", jsonString(&c.tables[i])))
		}
		buff.Truncate(buff.Len() - 1)
	}
	buff.WriteString("],")

	if c.cbvSrvUavHeapSpace != nil {
		buff.WriteString(fmt.Sprintf("\"cbvSrvUavHeapSpace\": %s,", jsonString(c.cbvSrvUavHeapSpace)))
	}
	if c.samplerHeapSpace != nil {
		buff.WriteString(fmt.Sprintf("\"samplerHeapSpace\": %s,", jsonString(c.samplerHeapSpace)))
	}
	buff.Truncate(buff.Len() - 1)

	buff.WriteString("}")
	return buff.Bytes(), nil
}
