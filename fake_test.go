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
	"goarrg.com/debug"
)

type fakeNativeRootSignature struct {
	device *fakeDevice
}

func (s *fakeNativeRootSignature) Release() {
	s.device.released++
}

type fakeAllocator struct {
	freed int
}

func (a *fakeAllocator) Free(*DescriptorHeapAllocation) {
	a.freed++
}

type fakeHeap struct {
	heapType DescriptorHeapType
}

func (h *fakeHeap) Type() DescriptorHeapType {
	return h.heapType
}

type fakeCopy struct {
	dst, src CPUDescriptorHandle
	heapType DescriptorHeapType
}

type fakeDevice struct {
	created   [][]byte
	released  int
	createErr error
	allocator fakeAllocator
	heaps     [numShaderVisibleHeapTypes]fakeHeap
	copies    []fakeCopy
}

func newFakeDevice() *fakeDevice {
	d := fakeDevice{}
	for h := range d.heaps {
		d.heaps[h].heapType = DescriptorHeapType(h)
	}
	return &d
}

func (d *fakeDevice) CreateRootSignature(serializedDesc []byte) (NativeRootSignature, error) {
	if d.createErr != nil {
		return nil, d.createErr
	}
	d.created = append(d.created, serializedDesc)
	return &fakeNativeRootSignature{device: d}, nil
}

func (d *fakeDevice) AllocateGPUDescriptors(heapType DescriptorHeapType, count uint32) (*DescriptorHeapAllocation, error) {
	if count > 1024 {
		return nil, debug.ErrorWrapf(ErrorOutOfDescriptors{}, "%d", count)
	}
	base := CPUDescriptorHandle(0x1000 * (uint32(heapType) + 1))
	return NewDescriptorHeapAllocation(&d.allocator, &d.heaps[heapType], 0, count, 1, base, GPUDescriptorHandle(base)<<16), nil
}

func (d *fakeDevice) CopyDescriptor(dst, src CPUDescriptorHandle, heapType DescriptorHeapType) {
	d.copies = append(d.copies, fakeCopy{dst: dst, src: src, heapType: heapType})
}

func attribs(name string, bindPoint, bindCount uint32, variableType VariableType) ShaderResourceAttribs {
	return ShaderResourceAttribs{Name: name, BindPoint: bindPoint, BindCount: bindCount, VariableType: variableType}
}
