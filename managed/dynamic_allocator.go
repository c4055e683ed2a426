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
	"goarrg.com/debug"
	"goarrg.com/rhi/rsig"
	"goarrg.com/rhi/rsig/internal/container"
	"goarrg.com/rhi/rsig/internal/util"
)

/*
DynamicDescriptorAllocator suballocates linearly out of chunks of a shader visible heap.
Suballocations are not freed individually, Reset returns every chunk to the heap once the
GPU is done with them. It is the user's responsibility to handle sync.
*/
type DynamicDescriptorAllocator struct {
	noCopy        util.NoCopy
	heap          *DescriptorHeap
	chunkSize     uint32
	current       *rsig.DescriptorHeapAllocation
	currentOffset uint32
	retired       container.Stack[*rsig.DescriptorHeapAllocation]
}

func NewDynamicDescriptorAllocator(heap *DescriptorHeap, chunkSize uint32) *DynamicDescriptorAllocator {
	if !heap.ShaderVisible() {
		abort("Dynamic descriptors must come from a shader visible heap, %q is not", heap.Name())
	}
	if chunkSize == 0 {
		abort("Dynamic descriptor allocator chunk size must be at least 1")
	}
	d := DynamicDescriptorAllocator{
		heap:      heap,
		chunkSize: chunkSize,
	}
	d.noCopy.Init()
	return &d
}

func (d *DynamicDescriptorAllocator) Allocate(count uint32) (*rsig.DescriptorHeapAllocation, error) {
	d.noCopy.Check()
	if count == 0 {
		abort("Allocating 0 dynamic descriptors")
	}

	if d.current == nil || d.current.NumHandles()-d.currentOffset < count {
		chunk, err := d.heap.Allocate(max(d.chunkSize, count))
		if err != nil {
			return nil, debug.ErrorWrapf(err, "Failed to allocate dynamic descriptor chunk")
		}
		if d.current != nil {
			d.retired.Push(d.current)
		}
		d.current = chunk
		d.currentOffset = 0
	}

	offset := d.currentOffset
	d.currentOffset += count
	return rsig.NewDescriptorHeapAllocation(d, d.heap, d.current.Offset()+offset, count, d.heap.info.DescriptorSize,
		d.current.CPUHandle(offset), d.current.GPUHandle(offset)), nil
}

// Free is a no-op, suballocations live until Reset.
func (d *DynamicDescriptorAllocator) Free(*rsig.DescriptorHeapAllocation) {
	d.noCopy.Check()
}

func (d *DynamicDescriptorAllocator) NumChunks() int {
	d.noCopy.Check()
	n := d.retired.Len()
	if d.current != nil {
		n++
	}
	return n
}

func (d *DynamicDescriptorAllocator) Reset() {
	d.noCopy.Check()
	for !d.retired.Empty() {
		d.retired.Pop().Release()
	}
	d.current.Release()
	d.current = nil
	d.currentOffset = 0
}

func (d *DynamicDescriptorAllocator) Destroy() {
	d.Reset()
	d.noCopy.Close()
}
