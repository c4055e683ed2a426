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
	"encoding/json"
	"fmt"
	"sync"

	"goarrg.com/debug"
	"goarrg.com/gmath"
	"goarrg.com/rhi/rsig"
)

const (
	descriptorSize = 32

	maxShaderVisibleCbvSrvUavDescriptors = 1000000
	maxShaderVisibleSamplerDescriptors   = 2048
)

type DeviceCreateInfo struct {
	// Sizes of the shader visible heaps, zero picks a default.
	NumCbvSrvUavDescriptors uint32
	NumSamplerDescriptors   uint32

	// Sizes of the staging heaps views and samplers are created in, zero picks a default.
	NumStagingCbvSrvUavDescriptors uint32
	NumStagingSamplerDescriptors   uint32
}

func (info *DeviceCreateInfo) validate() {
	setDefault := func(v *uint32, def, limit uint32, name string) {
		if *v == 0 {
			*v = def
		} else if !gmath.InRange(*v, 1, limit) {
			abort("DeviceCreateInfo.%s is outside of valid range [1, %d]", name, limit)
		}
	}
	setDefault(&info.NumCbvSrvUavDescriptors, 4096, maxShaderVisibleCbvSrvUavDescriptors, "NumCbvSrvUavDescriptors")
	setDefault(&info.NumSamplerDescriptors, 256, maxShaderVisibleSamplerDescriptors, "NumSamplerDescriptors")
	setDefault(&info.NumStagingCbvSrvUavDescriptors, 4096, maxShaderVisibleCbvSrvUavDescriptors, "NumStagingCbvSrvUavDescriptors")
	setDefault(&info.NumStagingSamplerDescriptors, 256, maxShaderVisibleCbvSrvUavDescriptors, "NumStagingSamplerDescriptors")
}

type nativeRootSignature struct {
	device *Device
	desc   []byte
}

func (s *nativeRootSignature) Release() {
	s.device.mtx.Lock()
	defer s.device.mtx.Unlock()
	if s.device.liveRootSignatures[s] == 0 {
		abort("Releasing dead root signature")
	}
	delete(s.device.liveRootSignatures, s)
}

// Desc is the serialized desc the root signature was created from.
func (s *nativeRootSignature) Desc() []byte {
	return s.desc
}

/*
Device implements rsig.Device in host memory, each heap type has one shader visible heap
and one staging heap. Safe for concurrent use.
*/
type Device struct {
	mtx                sync.Mutex
	shaderVisible      [2]*DescriptorHeap
	staging            [2]*DescriptorHeap
	liveRootSignatures map[*nativeRootSignature]int
	numCreated         int
}

func NewDevice(info DeviceCreateInfo) *Device {
	info.validate()
	instance.logger.VPrintf("Creating device: %+v", info)

	d := Device{liveRootSignatures: map[*nativeRootSignature]int{}}
	sizes := [2][2]uint32{
		{info.NumCbvSrvUavDescriptors, info.NumSamplerDescriptors},
		{info.NumStagingCbvSrvUavDescriptors, info.NumStagingSamplerDescriptors},
	}
	for h := range d.shaderVisible {
		heapType := rsig.DescriptorHeapType(h)
		d.shaderVisible[h] = NewDescriptorHeap(DescriptorHeapCreateInfo{
			Name:           fmt.Sprintf("shader_visible_%s", heapType),
			Type:           heapType,
			NumDescriptors: sizes[0][h],
			DescriptorSize: descriptorSize,
			ShaderVisible:  true,
			BaseCPUHandle:  rsig.CPUDescriptorHandle(h+1) * 0x1000_0000,
			BaseGPUHandle:  rsig.GPUDescriptorHandle(h+1) * 0x1_0000_0000,
		})
		d.staging[h] = NewDescriptorHeap(DescriptorHeapCreateInfo{
			Name:           fmt.Sprintf("staging_%s", heapType),
			Type:           heapType,
			NumDescriptors: sizes[1][h],
			DescriptorSize: descriptorSize,
			BaseCPUHandle:  rsig.CPUDescriptorHandle(h+1)*0x1000_0000 + 0x0800_0000,
		})
	}
	return &d
}

// CreateRootSignature checks that serializedDesc is valid JSON, the layout itself is not interpreted.
func (d *Device) CreateRootSignature(serializedDesc []byte) (rsig.NativeRootSignature, error) {
	if !json.Valid(serializedDesc) {
		return nil, debug.Errorf("Invalid serialized root signature: %q", serializedDesc)
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()

	s := &nativeRootSignature{device: d, desc: bytes.Clone(serializedDesc)}
	d.liveRootSignatures[s] = 1
	d.numCreated++
	return s, nil
}

func (d *Device) NumLiveRootSignatures() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return len(d.liveRootSignatures)
}

func (d *Device) NumCreatedRootSignatures() int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.numCreated
}

func (d *Device) AllocateGPUDescriptors(heapType rsig.DescriptorHeapType, count uint32) (*rsig.DescriptorHeapAllocation, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.heap(d.shaderVisible, heapType).Allocate(count)
}

// AllocateStagingDescriptors allocates descriptors that can be copied from but not bound.
func (d *Device) AllocateStagingDescriptors(heapType rsig.DescriptorHeapType, count uint32) (*rsig.DescriptorHeapAllocation, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.heap(d.staging, heapType).Allocate(count)
}

func (d *Device) CopyDescriptor(dst, src rsig.CPUDescriptorHandle, heapType rsig.DescriptorHeapType) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if src != 0 && !d.heap(d.staging, heapType).Contains(src) && !d.heap(d.shaderVisible, heapType).Contains(src) {
		abort("Source descriptor %#x is not a %s descriptor", src, heapType)
	}
	d.heap(d.shaderVisible, heapType).write(dst, src)
}

func (d *Device) ShaderVisibleHeap(heapType rsig.DescriptorHeapType) *DescriptorHeap {
	return d.heap(d.shaderVisible, heapType)
}

func (d *Device) heap(heaps [2]*DescriptorHeap, heapType rsig.DescriptorHeapType) *DescriptorHeap {
	if heapType > rsig.DescriptorHeapTypeSampler {
		abort("Unknown DescriptorHeapType: %d", heapType)
	}
	return heaps[heapType]
}

// ReadDescriptor returns the source handle last copied into a shader visible descriptor.
func (d *Device) ReadDescriptor(heapType rsig.DescriptorHeapType, handle rsig.CPUDescriptorHandle) rsig.CPUDescriptorHandle {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.heap(d.shaderVisible, heapType).Read(handle)
}

func (d *Device) Destroy() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if len(d.liveRootSignatures) > 0 {
		instance.logger.WPrintf("Destroying device with %d live root signatures", len(d.liveRootSignatures))
	}
	for h := range d.shaderVisible {
		d.shaderVisible[h].Destroy()
		d.staging[h].Destroy()
	}
}
