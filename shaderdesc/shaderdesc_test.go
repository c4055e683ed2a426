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

package shaderdesc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"goarrg.com/rhi/rsig"
	"goarrg.com/rhi/rsig/managed"
	"goarrg.com/rhi/rsig/shaderdesc"
)

func TestDecodeFile(t *testing.T) {
	shaders, err := shaderdesc.DecodeFile("testdata/pipeline.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !assert.Len(t, shaders, 2) {
		return
	}

	vs := shaders[0]
	assert.Equal(t, rsig.ShaderTypeVertex, vs.ShaderType)
	assert.Empty(t, vs.StaticSamplers)
	assert.Equal(t, []rsig.ShaderResource{
		{
			ShaderResourceAttribs: rsig.ShaderResourceAttribs{Name: "cbCamera", BindPoint: 0, BindCount: 1, VariableType: rsig.VariableTypeStatic},
			RangeType:             rsig.DescriptorRangeTypeCBV,
		},
		{
			ShaderResourceAttribs: rsig.ShaderResourceAttribs{Name: "instances", BindPoint: 0, BindCount: 1, VariableType: rsig.VariableTypeDynamic},
			RangeType:             rsig.DescriptorRangeTypeSRV,
		},
	}, vs.Resources)

	ps := shaders[1]
	assert.Equal(t, rsig.ShaderTypePixel, ps.ShaderType)
	if assert.Len(t, ps.Resources, 5) {
		assert.Equal(t, uint32(2), ps.Resources[0].BindCount)
		assert.Equal(t, rsig.VariableTypeMutable, ps.Resources[0].VariableType)
		assert.True(t, ps.Resources[1].IsStaticSampler)
		assert.Equal(t, "g_Albedo", ps.Resources[1].TextureName)
		assert.True(t, ps.Resources[3].IsStaticSampler)
		assert.False(t, ps.Resources[4].IsStaticSampler)
	}

	if assert.Len(t, ps.StaticSamplers, 2) {
		albedo := ps.StaticSamplers[0].Desc
		assert.Equal(t, rsig.FilterTypePoint, albedo.MinFilter)
		assert.Equal(t, rsig.FilterTypeLinear, albedo.MipFilter)
		assert.Equal(t, rsig.TextureAddressModeWrap, albedo.AddressU)
		assert.Equal(t, rsig.TextureAddressModeClamp, albedo.AddressW)
		assert.Equal(t, float32(3.402823466e+38), albedo.MaxLOD)

		shadow := ps.StaticSamplers[1].Desc
		assert.Equal(t, rsig.FilterTypeComparisonLinear, shadow.MinFilter)
		assert.Equal(t, rsig.ComparisonFunctionLessEqual, shadow.ComparisonFunc)
		assert.Equal(t, [4]float32{1, 1, 1, 1}, shadow.BorderColor)
		assert.Equal(t, float32(0), shadow.MaxLOD)
	}
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"unknownShaderType", "shaders: [{type: mesh}]"},
		{"unknownRange", "shaders: [{type: vs, resources: [{name: a, range: rtv}]}]"},
		{"unknownVariable", "shaders: [{type: vs, resources: [{name: a, range: srv, variable: constant}]}]"},
		{"unknownFilter", "shaders: [{type: ps, staticSamplers: [{texture: a, minFilter: cubic}]}]"},
		{"unknownField", "shaders: [{type: vs, stage: 1}]"},
		{"noType", "shaders: [{resources: [{name: a, range: srv}]}]"},
		{"duplicateShader", "shaders: [{type: vs}, {type: vertex}]"},
		{"duplicateResource", "shaders: [{type: vs, resources: [{name: a, range: srv}, {name: a, range: uav}]}]"},
		{"noName", "shaders: [{type: vs, resources: [{range: srv}]}]"},
		{"textureOnSRV", "shaders: [{type: ps, resources: [{name: a, range: srv, texture: b}]}]"},
		{"staticSamplerNoTexture", "shaders: [{type: ps, staticSamplers: [{minFilter: point}]}]"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := shaderdesc.Decode(strings.NewReader(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	shaders, err := shaderdesc.Decode(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, shaders)
}

func TestInitFromShaders(t *testing.T) {
	shaders, err := shaderdesc.DecodeFile("testdata/pipeline.yaml")
	if err != nil {
		t.Fatal(err)
	}

	device := managed.NewDevice(managed.DeviceCreateInfo{})
	defer device.Destroy()

	s := rsig.NewRootSignature()
	bindings := s.InitFromShaders(shaders...)
	assert.Len(t, bindings, 7)

	expected := []struct {
		shaderType rsig.ShaderType
		name       string
		rootIndex  uint32
		offset     uint32
	}{
		{rsig.ShaderTypeVertex, "cbCamera", 0, 0},
		{rsig.ShaderTypeVertex, "instances", 1, 0},
		{rsig.ShaderTypePixel, "g_Albedo", 2, 0},
		{rsig.ShaderTypePixel, "g_Shadow", 2, 2},
		{rsig.ShaderTypePixel, "cbMaterial", 3, 0},
	}
	for _, e := range expected {
		b, ok := bindings.Find(e.shaderType, e.name)
		if assert.True(t, ok, e.name) {
			assert.False(t, b.IsStaticSampler, e.name)
			assert.Equal(t, e.rootIndex, b.RootIndex, e.name)
			assert.Equal(t, e.offset, b.OffsetFromTableStart, e.name)
		}
	}
	b, ok := bindings.Find(rsig.ShaderTypePixel, "g_Shadow_sampler")
	assert.True(t, ok)
	assert.True(t, b.IsStaticSampler)

	assert.NoError(t, s.Finalize(device))
	defer s.Destroy()

	assert.Equal(t, 2, s.NumRootTables())
	assert.Equal(t, 2, s.NumRootViews())
	assert.True(t, s.HasDynamicResources())

	samplers := s.Desc().StaticSamplers
	if assert.Len(t, samplers, 3) {
		for i, register := range []uint32{0, 1, 2} {
			assert.Equal(t, register, samplers[i].ShaderRegister)
			assert.Equal(t, rsig.ShaderVisibilityPixel, samplers[i].Visibility)
		}
		assert.Equal(t, uint32(0x01), samplers[0].Filter)
		assert.Equal(t, uint32(1), samplers[0].AddressU)
		assert.Equal(t, uint32(3), samplers[0].AddressW)
		second := samplers[1]
		second.ShaderRegister = samplers[0].ShaderRegister
		assert.Equal(t, samplers[0], second)

		assert.Equal(t, uint32(0x95), samplers[2].Filter)
		assert.Equal(t, uint32(4), samplers[2].AddressV)
		assert.Equal(t, uint32(4), samplers[2].ComparisonFunc)
		assert.Equal(t, rsig.StaticBorderColorOpaqueWhite, samplers[2].BorderColor)
	}
}
