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

package managed

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"goarrg.com/debug"
	"goarrg.com/rhi/rsig"
	"goarrg.com/rhi/rsig/internal/util"
)

type DescriptorHeapCreateInfo struct {
	Name           string
	Type           rsig.DescriptorHeapType
	NumDescriptors uint32
	DescriptorSize uint32
	ShaderVisible  bool
	BaseCPUHandle  rsig.CPUDescriptorHandle
	BaseGPUHandle  rsig.GPUDescriptorHandle
}

type freeRange struct {
	offset uint32
	count  uint32
}

/*
DescriptorHeap hands out contiguous ranges first fit and coalesces them back on Free.
Each descriptor remembers the source handle last copied into it. Safe for concurrent use,
every command list draws its dynamic chunks from the same shader visible heap.
*/
type DescriptorHeap struct {
	noCopy     util.NoCopy
	mtx        sync.Mutex
	info       DescriptorHeapCreateInfo
	freeRanges []freeRange
	numFree    uint32
	contents   []rsig.CPUDescriptorHandle
}

func NewDescriptorHeap(info DescriptorHeapCreateInfo) *DescriptorHeap {
	if info.NumDescriptors == 0 {
		abort("Descriptor heap %q must have at least 1 descriptor", info.Name)
	}
	if info.DescriptorSize == 0 {
		abort("Descriptor heap %q has 0 descriptor size", info.Name)
	}
	if info.BaseCPUHandle == 0 {
		abort("Descriptor heap %q has a null base CPU handle", info.Name)
	}
	if info.ShaderVisible && info.BaseGPUHandle == 0 {
		abort("Shader visible descriptor heap %q has a null base GPU handle", info.Name)
	}
	h := DescriptorHeap{
		info:       info,
		freeRanges: []freeRange{{offset: 0, count: info.NumDescriptors}},
		numFree:    info.NumDescriptors,
		contents:   make([]rsig.CPUDescriptorHandle, info.NumDescriptors),
	}
	h.noCopy.Init()
	return &h
}

func (h *DescriptorHeap) Type() rsig.DescriptorHeapType {
	h.noCopy.Check()
	return h.info.Type
}

func (h *DescriptorHeap) Name() string {
	h.noCopy.Check()
	return h.info.Name
}

func (h *DescriptorHeap) ShaderVisible() bool {
	h.noCopy.Check()
	return h.info.ShaderVisible
}

func (h *DescriptorHeap) NumDescriptors() uint32 {
	h.noCopy.Check()
	return h.info.NumDescriptors
}

func (h *DescriptorHeap) NumFree() uint32 {
	h.noCopy.Check()
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.numFree
}

func (h *DescriptorHeap) CPUHandle(i uint32) rsig.CPUDescriptorHandle {
	return h.info.BaseCPUHandle + rsig.CPUDescriptorHandle(i)*rsig.CPUDescriptorHandle(h.info.DescriptorSize)
}

func (h *DescriptorHeap) Allocate(count uint32) (*rsig.DescriptorHeapAllocation, error) {
	h.noCopy.Check()
	if count == 0 {
		abort("Allocating 0 descriptors from heap %q", h.info.Name)
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	for i := range h.freeRanges {
		r := &h.freeRanges[i]
		if r.count < count {
			continue
		}
		offset := r.offset
		r.offset += count
		r.count -= count
		if r.count == 0 {
			h.freeRanges = slices.Delete(h.freeRanges, i, i+1)
		}
		h.numFree -= count

		gpuHandle := rsig.GPUDescriptorHandle(0)
		if h.info.ShaderVisible {
			gpuHandle = h.info.BaseGPUHandle + rsig.GPUDescriptorHandle(offset)*rsig.GPUDescriptorHandle(h.info.DescriptorSize)
		}
		return rsig.NewDescriptorHeapAllocation(h, h, offset, count, h.info.DescriptorSize, h.CPUHandle(offset), gpuHandle), nil
	}

	return nil, debug.ErrorWrapf(rsig.ErrorOutOfDescriptors{}, "Heap %q cannot fit %d descriptors, %d free",
		h.info.Name, count, h.numFree)
}

// Free implements rsig.DescriptorAllocator, it is called through DescriptorHeapAllocation.Release.
func (h *DescriptorHeap) Free(a *rsig.DescriptorHeapAllocation) {
	h.noCopy.Check()
	if a.Heap() != rsig.DescriptorHeap(h) {
		abort("Freeing allocation from a different heap into %q", h.info.Name)
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()

	r := freeRange{offset: a.Offset(), count: a.NumHandles()}
	if r.offset+r.count > h.info.NumDescriptors {
		abort("Freeing range [%d, %d) out of heap %q with %d descriptors", r.offset, r.offset+r.count, h.info.Name, h.info.NumDescriptors)
	}

	i, _ := slices.BinarySearchFunc(h.freeRanges, r.offset, func(e freeRange, t uint32) int {
		switch {
		case e.offset < t:
			return -1
		case e.offset > t:
			return 1
		}
		return 0
	})
	if (i > 0 && h.freeRanges[i-1].offset+h.freeRanges[i-1].count > r.offset) ||
		(i < len(h.freeRanges) && r.offset+r.count > h.freeRanges[i].offset) {
		abort("Double free of range [%d, %d) in heap %q", r.offset, r.offset+r.count, h.info.Name)
	}

	h.freeRanges = slices.Insert(h.freeRanges, i, r)
	if i+1 < len(h.freeRanges) && h.freeRanges[i].offset+h.freeRanges[i].count == h.freeRanges[i+1].offset {
		h.freeRanges[i].count += h.freeRanges[i+1].count
		h.freeRanges = slices.Delete(h.freeRanges, i+1, i+2)
	}
	if i > 0 && h.freeRanges[i-1].offset+h.freeRanges[i-1].count == h.freeRanges[i].offset {
		h.freeRanges[i-1].count += h.freeRanges[i].count
		h.freeRanges = slices.Delete(h.freeRanges, i, i+1)
	}
	h.numFree += r.count
}

func (h *DescriptorHeap) index(handle rsig.CPUDescriptorHandle) (uint32, bool) {
	if handle < h.info.BaseCPUHandle {
		return 0, false
	}
	diff := handle - h.info.BaseCPUHandle
	if diff%rsig.CPUDescriptorHandle(h.info.DescriptorSize) != 0 {
		return 0, false
	}
	i := diff / rsig.CPUDescriptorHandle(h.info.DescriptorSize)
	if i >= rsig.CPUDescriptorHandle(h.info.NumDescriptors) {
		return 0, false
	}
	return uint32(i), true
}

func (h *DescriptorHeap) Contains(handle rsig.CPUDescriptorHandle) bool {
	h.noCopy.Check()
	_, ok := h.index(handle)
	return ok
}

func (h *DescriptorHeap) write(dst, src rsig.CPUDescriptorHandle) {
	i, ok := h.index(dst)
	if !ok {
		abort("Descriptor %#x is not in heap %q", dst, h.info.Name)
	}
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.contents[i] = src
}

// Read returns the source handle last copied into the descriptor at handle.
func (h *DescriptorHeap) Read(handle rsig.CPUDescriptorHandle) rsig.CPUDescriptorHandle {
	h.noCopy.Check()
	i, ok := h.index(handle)
	if !ok {
		abort("Descriptor %#x is not in heap %q", handle, h.info.Name)
	}
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.contents[i]
}

func (h *DescriptorHeap) Destroy() {
	h.noCopy.Check()
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.numFree != h.info.NumDescriptors {
		instance.logger.WPrintf("Destroying heap %q with %d descriptors still allocated", h.info.Name, h.info.NumDescriptors-h.numFree)
	}
	h.freeRanges = nil
	h.contents = nil
	h.noCopy.Close()
}

func (h *DescriptorHeap) MarshalJSON() ([]byte, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"name\": %q,", h.info.Name))
	buff.WriteString(fmt.Sprintf("\"type\": %q,", h.info.Type.String()))
	buff.WriteString(fmt.Sprintf("\"shaderVisible\": %t,", h.info.ShaderVisible))
	buff.WriteString(fmt.Sprintf("\"numDescriptors\": %d,", h.info.NumDescriptors))
	buff.WriteString(fmt.Sprintf("\"numFree\": %d,", h.numFree))

	buff.WriteString("\"freeRanges\": [")
	if len(h.freeRanges) > 0 {
		for _, r := range h.freeRanges {
			buff.WriteString(fmt.Sprintf("[%d, %d],", r.offset, r.count))
		}
		buff.Truncate(buff.Len() - 1)
	}
	buff.WriteString("]")

	buff.WriteString("}")
	return buff.Bytes(), nil
}
