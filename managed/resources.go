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
	"goarrg.com/rhi/rsig"
)

// Stateful is implemented by resources whose state the CommandList updates on transition.
type Stateful interface {
	rsig.StatefulResource
	SetState(rsig.ResourceState)
}

type resource struct {
	name  string
	state rsig.ResourceState
}

func (r *resource) Name() string {
	return r.name
}

func (r *resource) State() rsig.ResourceState {
	return r.state
}

func (r *resource) SetState(s rsig.ResourceState) {
	r.state = s
}

type Buffer struct {
	resource
	address rsig.GPUVirtualAddress
	// Dynamic buffers live at a different address for every context.
	dynamic bool
	size    uint64
}

func NewBuffer(name string, address rsig.GPUVirtualAddress, size uint64, state rsig.ResourceState) *Buffer {
	return &Buffer{resource: resource{name: name, state: state}, address: address, size: size}
}

func NewDynamicBuffer(name string, address rsig.GPUVirtualAddress, size uint64, state rsig.ResourceState) *Buffer {
	b := NewBuffer(name, address, size, state)
	b.dynamic = true
	return b
}

func (b *Buffer) GPUAddress(contextID uint32) rsig.GPUVirtualAddress {
	if b.dynamic {
		return b.address + rsig.GPUVirtualAddress(uint64(contextID)*b.size)
	}
	return b.address
}

type Texture struct {
	resource
}

func NewTexture(name string, state rsig.ResourceState) *Texture {
	return &Texture{resource: resource{name: name, state: state}}
}

type descriptor struct {
	allocation *rsig.DescriptorHeapAllocation
}

func (d *descriptor) CPUDescriptorHandle() rsig.CPUDescriptorHandle {
	return d.allocation.CPUHandle(0)
}

func (d *descriptor) Destroy() {
	d.allocation.Release()
	d.allocation = nil
}

type BufferView struct {
	descriptor
	buffer *Buffer
}

func (v *BufferView) Buffer() rsig.Buffer {
	return v.buffer
}

type TextureView struct {
	descriptor
	texture *Texture
}

func (v *TextureView) Texture() rsig.StatefulResource {
	return v.texture
}

type Sampler struct {
	descriptor
	desc rsig.SamplerDesc
}

func (s *Sampler) Desc() rsig.SamplerDesc {
	return s.desc
}

func (d *Device) createDescriptor(heapType rsig.DescriptorHeapType) descriptor {
	alloc, err := d.AllocateStagingDescriptors(heapType, 1)
	if err != nil {
		abort("Failed to create descriptor: %s", err)
	}
	return descriptor{allocation: alloc}
}

// CreateBufferView creates a SRV, UAV or CBV descriptor of buffer in the staging heap.
func (d *Device) CreateBufferView(buffer *Buffer) *BufferView {
	return &BufferView{descriptor: d.createDescriptor(rsig.DescriptorHeapTypeCbvSrvUav), buffer: buffer}
}

func (d *Device) CreateTextureView(texture *Texture) *TextureView {
	return &TextureView{descriptor: d.createDescriptor(rsig.DescriptorHeapTypeCbvSrvUav), texture: texture}
}

func (d *Device) CreateSampler(desc rsig.SamplerDesc) *Sampler {
	return &Sampler{descriptor: d.createDescriptor(rsig.DescriptorHeapTypeSampler), desc: desc}
}
