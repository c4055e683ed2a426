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

package rsig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"goarrg.com/rhi/rsig"
	"goarrg.com/rhi/rsig/managed"
)

func attribs(name string, bindPoint, bindCount uint32, variableType rsig.VariableType) rsig.ShaderResourceAttribs {
	return rsig.ShaderResourceAttribs{Name: name, BindPoint: bindPoint, BindCount: bindCount, VariableType: variableType}
}

type testPipeline struct {
	device    *managed.Device
	signature *rsig.RootSignature
	cache     *rsig.ShaderResourceCache
}

func newTestPipeline(t *testing.T, build func(s *rsig.RootSignature)) *testPipeline {
	t.Helper()
	p := testPipeline{device: managed.NewDevice(managed.DeviceCreateInfo{})}
	p.signature = rsig.NewRootSignature()
	build(p.signature)
	if err := p.signature.Finalize(p.device); err != nil {
		t.Fatal(err)
	}
	cache, err := p.signature.InitResourceCache(p.device)
	if err != nil {
		t.Fatal(err)
	}
	p.cache = cache
	t.Cleanup(func() {
		p.cache.Destroy()
		p.signature.Destroy()
		p.device.Destroy()
	})
	return &p
}

func TestInitResourceCacheLayout(t *testing.T) {
	p := newTestPipeline(t, func(s *rsig.RootSignature) {
		s.AllocateResourceSlot(rsig.ShaderTypeVertex, attribs("vsTex", 0, 3, rsig.VariableTypeStatic), rsig.DescriptorRangeTypeSRV)
		s.AllocateResourceSlot(rsig.ShaderTypeVertex, attribs("cb", 0, 1, rsig.VariableTypeStatic), rsig.DescriptorRangeTypeCBV)
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("psDyn", 0, 2, rsig.VariableTypeDynamic), rsig.DescriptorRangeTypeSRV)
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("psTex", 1, 4, rsig.VariableTypeMutable), rsig.DescriptorRangeTypeSRV)
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("psSmp", 0, 2, rsig.VariableTypeStatic), rsig.DescriptorRangeTypeSampler)
	})

	assert.Equal(t, 5, p.cache.NumTables())

	sizes := []uint32{3, 1, 2, 4, 2}
	offsets := []uint32{0, rsig.InvalidDescriptorOffset, rsig.InvalidDescriptorOffset, 3, 0}
	for rootIndex := range sizes {
		tbl := p.cache.RootTable(uint32(rootIndex))
		assert.Equal(t, sizes[rootIndex], tbl.Size(), "root index %d", rootIndex)
		assert.Equal(t, offsets[rootIndex], tbl.StartOffset(), "root index %d", rootIndex)
	}

	staticTotal := p.signature.TotalSlots(rsig.DescriptorHeapTypeCbvSrvUav, rsig.VariableTypeStatic) +
		p.signature.TotalSlots(rsig.DescriptorHeapTypeCbvSrvUav, rsig.VariableTypeMutable)
	assert.Equal(t, uint32(7), staticTotal)

	heap := p.device.ShaderVisibleHeap(rsig.DescriptorHeapTypeCbvSrvUav)
	assert.Equal(t, heap.NumDescriptors()-staticTotal, heap.NumFree())
	samplerHeap := p.device.ShaderVisibleHeap(rsig.DescriptorHeapTypeSampler)
	assert.Equal(t, samplerHeap.NumDescriptors()-2, samplerHeap.NumFree())

	heaps := p.cache.DescriptorHeaps()
	assert.Equal(t, rsig.DescriptorHeap(heap), heaps.CbvSrvUav)
	assert.Equal(t, rsig.DescriptorHeap(samplerHeap), heaps.Sampler)

	assert.Equal(t,
		p.cache.ShaderVisibleTableGPUHandle(rsig.DescriptorHeapTypeCbvSrvUav, 0)+3*32,
		p.cache.ShaderVisibleTableGPUHandle(rsig.DescriptorHeapTypeCbvSrvUav, 3))
	assert.Panics(t, func() { p.cache.ShaderVisibleTableGPUHandle(rsig.DescriptorHeapTypeCbvSrvUav, 2) })
	assert.Panics(t, func() { p.cache.ShaderVisibleTableGPUHandle(rsig.DescriptorHeapTypeSampler, 0) })
}

func TestResourceCacheDestroyReleasesHeapSpace(t *testing.T) {
	device := managed.NewDevice(managed.DeviceCreateInfo{})
	defer device.Destroy()

	s := rsig.NewRootSignature()
	s.AllocateResourceSlot(rsig.ShaderTypeCompute, attribs("out", 0, 8, rsig.VariableTypeMutable), rsig.DescriptorRangeTypeUAV)
	s.AllocateResourceSlot(rsig.ShaderTypeCompute, attribs("smp", 0, 1, rsig.VariableTypeStatic), rsig.DescriptorRangeTypeSampler)
	assert.NoError(t, s.Finalize(device))
	defer s.Destroy()

	heap := device.ShaderVisibleHeap(rsig.DescriptorHeapTypeCbvSrvUav)
	free := heap.NumFree()

	caches := []*rsig.ShaderResourceCache{}
	for i := 0; i < 3; i++ {
		cache, err := s.InitResourceCache(device)
		assert.NoError(t, err)
		caches = append(caches, cache)
	}
	assert.Equal(t, free-3*8, heap.NumFree())

	for _, cache := range caches {
		cache.Destroy()
	}
	assert.Equal(t, free, heap.NumFree())
	assert.Equal(t, device.ShaderVisibleHeap(rsig.DescriptorHeapTypeSampler).NumDescriptors(),
		device.ShaderVisibleHeap(rsig.DescriptorHeapTypeSampler).NumFree())
}

func TestInitResourceCacheOutOfDescriptors(t *testing.T) {
	device := managed.NewDevice(managed.DeviceCreateInfo{NumCbvSrvUavDescriptors: 4})
	defer device.Destroy()

	s := rsig.NewRootSignature()
	s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("tex", 0, 8, rsig.VariableTypeStatic), rsig.DescriptorRangeTypeSRV)
	assert.NoError(t, s.Finalize(device))
	defer s.Destroy()

	cache, err := s.InitResourceCache(device)
	assert.Nil(t, cache)
	assert.ErrorIs(t, err, rsig.ErrorOutOfDescriptors{})
}

func TestResourceCacheSetters(t *testing.T) {
	p := newTestPipeline(t, func(s *rsig.RootSignature) {
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("tex", 0, 2, rsig.VariableTypeMutable), rsig.DescriptorRangeTypeSRV)
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("cbs", 0, 2, rsig.VariableTypeStatic), rsig.DescriptorRangeTypeCBV)
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("smp", 0, 1, rsig.VariableTypeStatic), rsig.DescriptorRangeTypeSampler)
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("dyn", 2, 1, rsig.VariableTypeDynamic), rsig.DescriptorRangeTypeSRV)
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("cb", 4, 1, rsig.VariableTypeStatic), rsig.DescriptorRangeTypeCBV)
	})

	texture := managed.NewTexture("texture", rsig.ResourceStateCommon)
	textureView := p.device.CreateTextureView(texture)
	defer textureView.Destroy()
	buffer := managed.NewBuffer("buffer", 0x10000, 256, rsig.ResourceStateCommon)
	bufferView := p.device.CreateBufferView(buffer)
	defer bufferView.Destroy()
	sampler := p.device.CreateSampler(rsig.SamplerDesc{})
	defer sampler.Destroy()

	p.cache.SetTextureSRV(0, 1, textureView)
	p.cache.SetConstantBuffer(0, 3, buffer, bufferView.CPUDescriptorHandle())
	p.cache.SetSampler(1, 0, sampler)
	p.cache.SetBufferSRV(2, 0, bufferView)
	p.cache.SetConstantBuffer(3, 0, buffer, 0)

	res := p.cache.RootTable(0).Resource(1)
	assert.Equal(t, rsig.CachedResourceTypeTexSRV, res.Type)
	assert.Equal(t, textureView.CPUDescriptorHandle(), res.CPUDescriptorHandle)
	assert.Equal(t, textureView.CPUDescriptorHandle(),
		p.device.ReadDescriptor(rsig.DescriptorHeapTypeCbvSrvUav, p.cache.ShaderVisibleTableCPUHandle(rsig.DescriptorHeapTypeCbvSrvUav, 0, 1)))
	assert.Equal(t, bufferView.CPUDescriptorHandle(),
		p.device.ReadDescriptor(rsig.DescriptorHeapTypeCbvSrvUav, p.cache.ShaderVisibleTableCPUHandle(rsig.DescriptorHeapTypeCbvSrvUav, 0, 3)))
	assert.Equal(t, sampler.CPUDescriptorHandle(),
		p.device.ReadDescriptor(rsig.DescriptorHeapTypeSampler, p.cache.ShaderVisibleTableCPUHandle(rsig.DescriptorHeapTypeSampler, 1, 0)))
	assert.Equal(t, rsig.CachedResourceTypeBufSRV, p.cache.RootTable(2).Resource(0).Type)
	assert.Equal(t, rsig.CachedResourceTypeCBV, p.cache.RootTable(3).Resource(0).Type)

	p.cache.ResetResource(0, 1)
	assert.Equal(t, rsig.CachedResourceTypeUnknown, p.cache.RootTable(0).Resource(1).Type)
	assert.Nil(t, p.cache.RootTable(0).Resource(1).Object)
	assert.Equal(t, rsig.CPUDescriptorHandle(0),
		p.device.ReadDescriptor(rsig.DescriptorHeapTypeCbvSrvUav, p.cache.ShaderVisibleTableCPUHandle(rsig.DescriptorHeapTypeCbvSrvUav, 0, 1)))

	assert.Panics(t, func() { p.cache.SetSampler(0, 0, sampler) })
	assert.Panics(t, func() { p.cache.SetTextureSRV(1, 0, textureView) })
	assert.Panics(t, func() { p.cache.SetBufferSRV(3, 0, bufferView) })
	assert.Panics(t, func() { p.cache.SetTextureSRV(0, 4, textureView) })
	assert.Panics(t, func() { p.cache.RootTable(5) })
}

func TestInitResourceCacheOtherDevice(t *testing.T) {
	p := newTestPipeline(t, func(s *rsig.RootSignature) {
		s.AllocateResourceSlot(rsig.ShaderTypePixel, attribs("tex", 0, 2, rsig.VariableTypeDynamic), rsig.DescriptorRangeTypeSRV)
	})

	other := managed.NewDevice(managed.DeviceCreateInfo{})
	defer other.Destroy()
	assert.Panics(t, func() { _, _ = p.signature.InitResourceCache(other) })
}
