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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"goarrg.com/rhi/rsig"
)

func TestCommandListRecord(t *testing.T) {
	d := NewDevice(DeviceCreateInfo{NumCbvSrvUavDescriptors: 64, NumSamplerDescriptors: 16})
	defer d.Destroy()

	l := NewCommandList(d, 8)
	defer l.Destroy()

	tex := NewTexture("albedo", rsig.ResourceStateCommon)
	l.TransitionResource(tex, rsig.ResourceStatePixelShaderResource)
	assert.Equal(t, rsig.ResourceStatePixelShaderResource, tex.State())

	heaps := rsig.ShaderDescriptorHeaps{CbvSrvUav: d.ShaderVisibleHeap(rsig.DescriptorHeapTypeCbvSrvUav)}
	l.SetDescriptorHeaps(heaps)
	l.SetRootDescriptorTable(1, 0x1_0000_0040, true)
	l.SetRootConstantBufferView(2, 0xbeef00, false)

	commands := l.Commands()
	if assert.Len(t, commands, 4) {
		assert.Equal(t, Command{Type: CommandTypeTransition, Resource: tex, State: rsig.ResourceStatePixelShaderResource}, commands[0])
		assert.Equal(t, heaps, commands[1].Heaps)
		assert.Equal(t, Command{Type: CommandTypeSetRootDescriptorTable, RootIndex: 1, Table: 0x1_0000_0040, IsCompute: true}, commands[2])
		assert.Equal(t, Command{Type: CommandTypeSetRootConstantBufferView, RootIndex: 2, Address: 0xbeef00}, commands[3])
	}

	b, err := l.MarshalJSON()
	assert.NoError(t, err)
	assert.Contains(t, string(b), `"rootIndex": 1,"table": "0x100000040","isCompute": true`)
	assert.Contains(t, string(b), `"resource": "albedo"`)
	assert.True(t, json.Valid(b))

	l.Reset()
	assert.Empty(t, l.Commands())
}

func TestCommandListDynamicDescriptors(t *testing.T) {
	d := NewDevice(DeviceCreateInfo{NumCbvSrvUavDescriptors: 64, NumSamplerDescriptors: 16})
	defer d.Destroy()

	l := NewCommandList(d, 8)
	defer l.Destroy()

	resources := d.ShaderVisibleHeap(rsig.DescriptorHeapTypeCbvSrvUav)
	samplers := d.ShaderVisibleHeap(rsig.DescriptorHeapTypeSampler)

	a, err := l.AllocateDynamicGPUVisibleDescriptors(rsig.DescriptorHeapTypeCbvSrvUav, 5)
	assert.NoError(t, err)
	assert.Equal(t, rsig.DescriptorHeap(resources), a.Heap())
	s, err := l.AllocateDynamicGPUVisibleDescriptors(rsig.DescriptorHeapTypeSampler, 2)
	assert.NoError(t, err)
	assert.Equal(t, rsig.DescriptorHeap(samplers), s.Heap())
	assert.Equal(t, uint32(56), resources.NumFree())
	assert.Equal(t, uint32(8), samplers.NumFree())

	_, err = l.AllocateDynamicGPUVisibleDescriptors(rsig.DescriptorHeapTypeSampler, 32)
	assert.ErrorIs(t, err, rsig.ErrorOutOfDescriptors{})
	assert.Panics(t, func() { _, _ = l.AllocateDynamicGPUVisibleDescriptors(rsig.DescriptorHeapType(2), 1) })

	l.Reset()
	assert.Equal(t, uint32(64), resources.NumFree())
	assert.Equal(t, uint32(16), samplers.NumFree())
}

func TestDeviceDescriptors(t *testing.T) {
	d := NewDevice(DeviceCreateInfo{})
	defer d.Destroy()

	assert.Panics(t, func() { NewDevice(DeviceCreateInfo{NumSamplerDescriptors: 4096}) })

	buffer := NewDynamicBuffer("cb", 0x1000, 0x100, rsig.ResourceStateCommon)
	assert.Equal(t, rsig.GPUVirtualAddress(0x1300), buffer.GPUAddress(3))
	assert.Equal(t, rsig.GPUVirtualAddress(0x2000), NewBuffer("vb", 0x2000, 0x100, rsig.ResourceStateCommon).GPUAddress(3))

	view := d.CreateBufferView(buffer)
	defer view.Destroy()
	sampler := d.CreateSampler(rsig.SamplerDesc{MinFilter: rsig.FilterTypePoint})
	defer sampler.Destroy()
	assert.Equal(t, rsig.FilterTypePoint, sampler.Desc().MinFilter)
	assert.Equal(t, rsig.Buffer(buffer), view.Buffer())

	dst, err := d.AllocateGPUDescriptors(rsig.DescriptorHeapTypeCbvSrvUav, 2)
	assert.NoError(t, err)
	defer dst.Release()

	d.CopyDescriptor(dst.CPUHandle(1), view.CPUDescriptorHandle(), rsig.DescriptorHeapTypeCbvSrvUav)
	assert.Equal(t, view.CPUDescriptorHandle(), d.ReadDescriptor(rsig.DescriptorHeapTypeCbvSrvUav, dst.CPUHandle(1)))
	d.CopyDescriptor(dst.CPUHandle(1), 0, rsig.DescriptorHeapTypeCbvSrvUav)
	assert.Equal(t, rsig.CPUDescriptorHandle(0), d.ReadDescriptor(rsig.DescriptorHeapTypeCbvSrvUav, dst.CPUHandle(1)))

	assert.Panics(t, func() {
		d.CopyDescriptor(dst.CPUHandle(0), sampler.CPUDescriptorHandle(), rsig.DescriptorHeapTypeCbvSrvUav)
	})

	native, err := d.CreateRootSignature([]byte(`{"Parameters": []}`))
	assert.NoError(t, err)
	assert.Equal(t, 1, d.NumLiveRootSignatures())
	native.Release()
	assert.Equal(t, 0, d.NumLiveRootSignatures())
	assert.Equal(t, 1, d.NumCreatedRootSignatures())

	_, err = d.CreateRootSignature([]byte("{"))
	assert.Error(t, err)
}
