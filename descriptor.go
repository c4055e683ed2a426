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
	"strings"

	"goarrg.com/debug"
	"goarrg.com/rhi/rsig/internal/util"
)

type DescriptorRangeType uint32

const (
	DescriptorRangeTypeSRV DescriptorRangeType = iota
	DescriptorRangeTypeUAV
	DescriptorRangeTypeCBV
	DescriptorRangeTypeSampler
)

func (t DescriptorRangeType) String() string {
	switch t {
	case DescriptorRangeTypeSRV:
		return "SRV"
	case DescriptorRangeTypeUAV:
		return "UAV"
	case DescriptorRangeTypeCBV:
		return "CBV"
	case DescriptorRangeTypeSampler:
		return "Sampler"

	default:
		abort("Unknown DescriptorRangeType: %d", uint32(t))
	}

	return ""
}

type DescriptorHeapType uint32

const (
	DescriptorHeapTypeCbvSrvUav DescriptorHeapType = iota
	DescriptorHeapTypeSampler
)

const numShaderVisibleHeapTypes = 2

func (t DescriptorHeapType) String() string {
	switch t {
	case DescriptorHeapTypeCbvSrvUav:
		return "CbvSrvUav"
	case DescriptorHeapTypeSampler:
		return "Sampler"

	default:
		abort("Unknown DescriptorHeapType: %d", uint32(t))
	}

	return ""
}

func HeapTypeFromRangeType(t DescriptorRangeType) (DescriptorHeapType, error) {
	switch t {
	case DescriptorRangeTypeSRV, DescriptorRangeTypeUAV, DescriptorRangeTypeCBV:
		return DescriptorHeapTypeCbvSrvUav, nil
	case DescriptorRangeTypeSampler:
		return DescriptorHeapTypeSampler, nil
	}
	return DescriptorHeapTypeCbvSrvUav, debug.ErrorWrapf(ErrorUnknownEnum{}, "DescriptorRangeType: %d", uint32(t))
}

type ResourceState uint32

const (
	ResourceStateCommon                  ResourceState = 0
	ResourceStateVertexAndConstantBuffer ResourceState = 0x1
	ResourceStateUnorderedAccess         ResourceState = 0x8
	ResourceStateNonPixelShaderResource  ResourceState = 0x40
	ResourceStatePixelShaderResource     ResourceState = 0x80

	ResourceStateShaderResource = ResourceStatePixelShaderResource | ResourceStateNonPixelShaderResource
)

func (s ResourceState) String() string {
	if s == ResourceStateCommon {
		return "Common"
	}

	str := ""

	if hasBits(s, ResourceStateVertexAndConstantBuffer) {
		str += "VertexAndConstantBuffer|"
	}
	if hasBits(s, ResourceStateUnorderedAccess) {
		str += "UnorderedAccess|"
	}
	if hasBits(s, ResourceStateNonPixelShaderResource) {
		str += "NonPixelShaderResource|"
	}
	if hasBits(s, ResourceStatePixelShaderResource) {
		str += "PixelShaderResource|"
	}

	return strings.TrimSuffix(str, "|")
}

// RequiredStateFromRangeType is the state a resource bound through a range of type t must be in
// when the GPU reads it, samplers have no state.
func RequiredStateFromRangeType(t DescriptorRangeType) (ResourceState, error) {
	switch t {
	case DescriptorRangeTypeCBV:
		return ResourceStateVertexAndConstantBuffer, nil
	case DescriptorRangeTypeSRV:
		return ResourceStateShaderResource, nil
	case DescriptorRangeTypeUAV:
		return ResourceStateUnorderedAccess, nil
	case DescriptorRangeTypeSampler:
		return ResourceStateCommon, nil
	}
	return ResourceStateCommon, debug.ErrorWrapf(ErrorUnknownEnum{}, "DescriptorRangeType: %d", uint32(t))
}

type CachedResourceType uint32

const (
	CachedResourceTypeUnknown CachedResourceType = iota
	CachedResourceTypeCBV
	CachedResourceTypeBufSRV
	CachedResourceTypeBufUAV
	CachedResourceTypeTexSRV
	CachedResourceTypeTexUAV
	CachedResourceTypeSampler
)

func (t CachedResourceType) String() string {
	switch t {
	case CachedResourceTypeUnknown:
		return "Unknown"
	case CachedResourceTypeCBV:
		return "CBV"
	case CachedResourceTypeBufSRV:
		return "BufSRV"
	case CachedResourceTypeBufUAV:
		return "BufUAV"
	case CachedResourceTypeTexSRV:
		return "TexSRV"
	case CachedResourceTypeTexUAV:
		return "TexUAV"
	case CachedResourceTypeSampler:
		return "Sampler"

	default:
		abort("Unknown CachedResourceType: %d", uint32(t))
	}

	return ""
}

// rangeType is the only descriptor range type a cached resource of type t may be bound through.
func (t CachedResourceType) rangeType() DescriptorRangeType {
	switch t {
	case CachedResourceTypeCBV:
		return DescriptorRangeTypeCBV
	case CachedResourceTypeBufSRV, CachedResourceTypeTexSRV:
		return DescriptorRangeTypeSRV
	case CachedResourceTypeBufUAV, CachedResourceTypeTexUAV:
		return DescriptorRangeTypeUAV
	case CachedResourceTypeSampler:
		return DescriptorRangeTypeSampler

	default:
		abort("CachedResourceType %s has no descriptor range type", t)
	}

	return 0
}

type (
	CPUDescriptorHandle uintptr
	GPUDescriptorHandle uint64
	GPUVirtualAddress   uint64
)

type DescriptorRange struct {
	RangeType            DescriptorRangeType
	NumDescriptors       uint32
	BaseShaderRegister   uint32
	RegisterSpace        uint32
	OffsetFromTableStart uint32

	// Declared type of the resource occupying the range, tables only distinguish
	// dynamic from everything else but slot totals are kept per declared type.
	VariableType VariableType
}

func (r DescriptorRange) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"RangeType\": %q,", r.RangeType.String()))
	buff.WriteString(fmt.Sprintf("\"NumDescriptors\": %d,", r.NumDescriptors))
	buff.WriteString(fmt.Sprintf("\"BaseShaderRegister\": %d,", r.BaseShaderRegister))
	buff.WriteString(fmt.Sprintf("\"RegisterSpace\": %d,", r.RegisterSpace))
	buff.WriteString(fmt.Sprintf("\"OffsetFromTableStart\": %d", r.OffsetFromTableStart))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

type DescriptorHeap interface {
	Type() DescriptorHeapType
}

type DescriptorAllocator interface {
	Free(*DescriptorHeapAllocation)
}

/*
DescriptorHeapAllocation is a contiguous range of descriptors inside a DescriptorHeap owned by
exactly one user, it must not be copied by value and is returned to its allocator by Release.
*/
type DescriptorHeapAllocation struct {
	noCopy         util.NoCopy
	allocator      DescriptorAllocator
	heap           DescriptorHeap
	offset         uint32
	numHandles     uint32
	descriptorSize uint32
	firstCPUHandle CPUDescriptorHandle
	firstGPUHandle GPUDescriptorHandle
}

/*
NewDescriptorHeapAllocation is meant for DescriptorAllocator implementations, offset is
the position of the range in the heap in descriptors and is reported back by Offset.
*/
func NewDescriptorHeapAllocation(allocator DescriptorAllocator, heap DescriptorHeap, offset, numHandles, descriptorSize uint32,
	firstCPUHandle CPUDescriptorHandle, firstGPUHandle GPUDescriptorHandle,
) *DescriptorHeapAllocation {
	a := DescriptorHeapAllocation{
		allocator:      allocator,
		heap:           heap,
		offset:         offset,
		numHandles:     numHandles,
		descriptorSize: descriptorSize,
		firstCPUHandle: firstCPUHandle,
		firstGPUHandle: firstGPUHandle,
	}
	a.noCopy.Init()
	return &a
}

func (a *DescriptorHeapAllocation) IsNull() bool {
	return a == nil || a.numHandles == 0
}

func (a *DescriptorHeapAllocation) Heap() DescriptorHeap {
	if a == nil {
		return nil
	}
	a.noCopy.Check()
	return a.heap
}

func (a *DescriptorHeapAllocation) Offset() uint32 {
	a.noCopy.Check()
	return a.offset
}

func (a *DescriptorHeapAllocation) NumHandles() uint32 {
	if a == nil {
		return 0
	}
	a.noCopy.Check()
	return a.numHandles
}

func (a *DescriptorHeapAllocation) CPUHandle(i uint32) CPUDescriptorHandle {
	a.noCopy.Check()
	if i >= a.numHandles {
		abort("Descriptor %d is out of range of allocation with %d descriptors", i, a.numHandles)
	}
	return a.firstCPUHandle + CPUDescriptorHandle(i)*CPUDescriptorHandle(a.descriptorSize)
}

func (a *DescriptorHeapAllocation) GPUHandle(i uint32) GPUDescriptorHandle {
	a.noCopy.Check()
	if i >= a.numHandles {
		abort("Descriptor %d is out of range of allocation with %d descriptors", i, a.numHandles)
	}
	return a.firstGPUHandle + GPUDescriptorHandle(i)*GPUDescriptorHandle(a.descriptorSize)
}

func (a *DescriptorHeapAllocation) Release() {
	if a == nil {
		return
	}
	if !a.noCopy.Alive() {
		abort("Releasing a descriptor allocation that was already released or copied by value: \n%s", debug.StackTrace(0))
	}
	if a.allocator != nil {
		a.allocator.Free(a)
	}
	a.noCopy.Close()
}

func (a *DescriptorHeapAllocation) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"offset\": %d,", a.offset))
	buff.WriteString(fmt.Sprintf("\"numHandles\": %d,", a.numHandles))
	buff.WriteString(fmt.Sprintf("\"descriptorSize\": %d,", a.descriptorSize))
	buff.WriteString(fmt.Sprintf("\"firstCPUHandle\": %q,", toHex(a.firstCPUHandle)))
	buff.WriteString(fmt.Sprintf("\"firstGPUHandle\": %q", toHex(a.firstGPUHandle)))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

// ShaderDescriptorHeaps is the pair of shader visible heaps a command list reads descriptors from.
type ShaderDescriptorHeaps struct {
	CbvSrvUav DescriptorHeap
	Sampler   DescriptorHeap
}

func (h ShaderDescriptorHeaps) IsEmpty() bool {
	return h.CbvSrvUav == nil && h.Sampler == nil
}
