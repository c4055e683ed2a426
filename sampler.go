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
)

type FilterType uint32

const (
	FilterTypeUnknown FilterType = iota
	FilterTypePoint
	FilterTypeLinear
	FilterTypeAnisotropic
	FilterTypeComparisonPoint
	FilterTypeComparisonLinear
	FilterTypeComparisonAnisotropic
)

func (f FilterType) String() string {
	switch f {
	case FilterTypeUnknown:
		return "Unknown"
	case FilterTypePoint:
		return "Point"
	case FilterTypeLinear:
		return "Linear"
	case FilterTypeAnisotropic:
		return "Anisotropic"
	case FilterTypeComparisonPoint:
		return "ComparisonPoint"
	case FilterTypeComparisonLinear:
		return "ComparisonLinear"
	case FilterTypeComparisonAnisotropic:
		return "ComparisonAnisotropic"
	}
	abort("Unknown FilterType: %d", f)
	return ""
}

func (f FilterType) isComparison() bool {
	return f >= FilterTypeComparisonPoint
}

func (f FilterType) isAnisotropic() bool {
	return f == FilterTypeAnisotropic || f == FilterTypeComparisonAnisotropic
}

type TextureAddressMode uint32

const (
	TextureAddressModeUnknown TextureAddressMode = iota
	TextureAddressModeWrap
	TextureAddressModeMirror
	TextureAddressModeClamp
	TextureAddressModeBorder
	TextureAddressModeMirrorOnce
)

func (m TextureAddressMode) String() string {
	switch m {
	case TextureAddressModeUnknown:
		return "Unknown"
	case TextureAddressModeWrap:
		return "Wrap"
	case TextureAddressModeMirror:
		return "Mirror"
	case TextureAddressModeClamp:
		return "Clamp"
	case TextureAddressModeBorder:
		return "Border"
	case TextureAddressModeMirrorOnce:
		return "MirrorOnce"
	}
	abort("Unknown TextureAddressMode: %d", m)
	return ""
}

type ComparisonFunction uint32

const (
	ComparisonFunctionUnknown ComparisonFunction = iota
	ComparisonFunctionNever
	ComparisonFunctionLess
	ComparisonFunctionEqual
	ComparisonFunctionLessEqual
	ComparisonFunctionGreater
	ComparisonFunctionNotEqual
	ComparisonFunctionGreaterEqual
	ComparisonFunctionAlways
)

func (c ComparisonFunction) String() string {
	switch c {
	case ComparisonFunctionUnknown:
		return "Unknown"
	case ComparisonFunctionNever:
		return "Never"
	case ComparisonFunctionLess:
		return "Less"
	case ComparisonFunctionEqual:
		return "Equal"
	case ComparisonFunctionLessEqual:
		return "LessEqual"
	case ComparisonFunctionGreater:
		return "Greater"
	case ComparisonFunctionNotEqual:
		return "NotEqual"
	case ComparisonFunctionGreaterEqual:
		return "GreaterEqual"
	case ComparisonFunctionAlways:
		return "Always"
	}
	abort("Unknown ComparisonFunction: %d", c)
	return ""
}

type SamplerDesc struct {
	MinFilter      FilterType
	MagFilter      FilterType
	MipFilter      FilterType
	AddressU       TextureAddressMode
	AddressV       TextureAddressMode
	AddressW       TextureAddressMode
	MipLODBias     float32
	MaxAnisotropy  uint32
	ComparisonFunc ComparisonFunction
	BorderColor    [4]float32
	MinLOD         float32
	MaxLOD         float32
}

// StaticSamplerDesc binds an immutable sampler to every texture named TextureName in a shader.
type StaticSamplerDesc struct {
	TextureName string
	Desc        SamplerDesc
}

const (
	nativeFilterReductionShift = 7
	nativeFilterMinShift       = 4
	nativeFilterMagShift       = 2
	nativeFilterAnisotropicBit = 0x40
	nativeFilterTypeMask       = 0x3
)

func nativeFilterType(f FilterType) uint32 {
	switch f {
	case FilterTypePoint, FilterTypeComparisonPoint:
		return 0
	default:
		return 1
	}
}

/*
NativeFilter encodes a min/mag/mip filter triple the way D3D12_ENCODE_BASIC_FILTER and
D3D12_ENCODE_ANISOTROPIC_FILTER do. All three filters must agree on comparison and
anisotropic filtering requires both min and mag to be anisotropic.
*/
func NativeFilter(minFilter, magFilter, mipFilter FilterType) (uint32, error) {
	for _, f := range []FilterType{minFilter, magFilter, mipFilter} {
		if f == FilterTypeUnknown || f > FilterTypeComparisonAnisotropic {
			return 0, debug.ErrorWrapf(ErrorUnknownEnum{}, "Invalid sampler filter: %d", f)
		}
	}
	if minFilter.isComparison() != magFilter.isComparison() || minFilter.isComparison() != mipFilter.isComparison() {
		return 0, debug.Errorf("Min, mag and mip filters must all be comparison filters or none: %s %s %s",
			minFilter, magFilter, mipFilter)
	}

	reduction := uint32(0)
	if minFilter.isComparison() {
		reduction = 1
	}

	if minFilter.isAnisotropic() || magFilter.isAnisotropic() {
		if !minFilter.isAnisotropic() || !magFilter.isAnisotropic() {
			return 0, debug.Errorf("Anisotropic filtering requires both min and mag filters to be anisotropic: %s %s",
				minFilter, magFilter)
		}
		return nativeFilterAnisotropicBit |
			(1 << nativeFilterMinShift) | (1 << nativeFilterMagShift) | 1 |
			(reduction << nativeFilterReductionShift), nil
	}

	return ((nativeFilterType(minFilter) & nativeFilterTypeMask) << nativeFilterMinShift) |
		((nativeFilterType(magFilter) & nativeFilterTypeMask) << nativeFilterMagShift) |
		(nativeFilterType(mipFilter) & nativeFilterTypeMask) |
		(reduction << nativeFilterReductionShift), nil
}

// NativeAddressMode matches D3D12_TEXTURE_ADDRESS_MODE.
func NativeAddressMode(m TextureAddressMode) (uint32, error) {
	if m == TextureAddressModeUnknown || m > TextureAddressModeMirrorOnce {
		return 0, debug.ErrorWrapf(ErrorUnknownEnum{}, "Invalid address mode: %d", m)
	}
	return uint32(m), nil
}

// NativeComparisonFunc matches D3D12_COMPARISON_FUNC, unknown maps to never for non comparison samplers.
func NativeComparisonFunc(c ComparisonFunction) (uint32, error) {
	if c == ComparisonFunctionUnknown {
		return uint32(ComparisonFunctionNever), nil
	}
	if c > ComparisonFunctionAlways {
		return 0, debug.ErrorWrapf(ErrorUnknownEnum{}, "Invalid comparison function: %d", c)
	}
	return uint32(c), nil
}

const (
	StaticBorderColorTransparentBlack uint32 = iota
	StaticBorderColorOpaqueBlack
	StaticBorderColorOpaqueWhite
)

// NativeStaticBorderColor only has 3 colors to choose from, anything else is reported and treated as opaque black.
func NativeStaticBorderColor(c [4]float32) uint32 {
	switch c {
	case [4]float32{0, 0, 0, 0}:
		return StaticBorderColorTransparentBlack
	case [4]float32{0, 0, 0, 1}:
		return StaticBorderColorOpaqueBlack
	case [4]float32{1, 1, 1, 1}:
		return StaticBorderColorOpaqueWhite
	}
	instance.logger.EPrintf("Static samplers only allow transparent black (0,0,0,0), opaque black (0,0,0,1) or opaque white (1,1,1,1) as border colors, got: %v", c)
	return StaticBorderColorOpaqueBlack
}

type staticSamplerAttribs struct {
	desc           StaticSamplerDesc
	visibility     ShaderVisibility
	shaderRegister uint32
	registerSpace  uint32
	// Zero until resolved by InitStaticSampler, unresolved samplers do not make it into the native desc.
	arraySize uint32
}

// StaticSamplerNativeDesc is one expanded entry of the native static sampler list.
type StaticSamplerNativeDesc struct {
	Filter         uint32
	AddressU       uint32
	AddressV       uint32
	AddressW       uint32
	MipLODBias     float32
	MaxAnisotropy  uint32
	ComparisonFunc uint32
	BorderColor    uint32
	MinLOD         float32
	MaxLOD         float32
	ShaderRegister uint32
	RegisterSpace  uint32
	Visibility     ShaderVisibility
}

// withDefaults fills the zero values a sampler is declared with: linear filtering, clamp addressing.
func (d SamplerDesc) withDefaults() SamplerDesc {
	for _, f := range []*FilterType{&d.MinFilter, &d.MagFilter, &d.MipFilter} {
		if *f == FilterTypeUnknown {
			*f = FilterTypeLinear
		}
	}
	for _, m := range []*TextureAddressMode{&d.AddressU, &d.AddressV, &d.AddressW} {
		if *m == TextureAddressModeUnknown {
			*m = TextureAddressModeClamp
		}
	}
	if d.ComparisonFunc == ComparisonFunctionUnknown {
		d.ComparisonFunc = ComparisonFunctionNever
	}
	return d
}

func (s *staticSamplerAttribs) nativeDescs() ([]StaticSamplerNativeDesc, error) {
	withDefaults := s.desc.Desc.withDefaults()
	d := &withDefaults
	filter, err := NativeFilter(d.MinFilter, d.MagFilter, d.MipFilter)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Static sampler %q", s.desc.TextureName)
	}
	var address [3]uint32
	for i, m := range []TextureAddressMode{d.AddressU, d.AddressV, d.AddressW} {
		address[i], err = NativeAddressMode(m)
		if err != nil {
			return nil, debug.ErrorWrapf(err, "Static sampler %q", s.desc.TextureName)
		}
	}
	comparison, err := NativeComparisonFunc(d.ComparisonFunc)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Static sampler %q", s.desc.TextureName)
	}
	borderColor := NativeStaticBorderColor(d.BorderColor)

	descs := make([]StaticSamplerNativeDesc, 0, s.arraySize)
	for i := uint32(0); i < s.arraySize; i++ {
		descs = append(descs, StaticSamplerNativeDesc{
			Filter:         filter,
			AddressU:       address[0],
			AddressV:       address[1],
			AddressW:       address[2],
			MipLODBias:     d.MipLODBias,
			MaxAnisotropy:  d.MaxAnisotropy,
			ComparisonFunc: comparison,
			BorderColor:    borderColor,
			MinLOD:         d.MinLOD,
			MaxLOD:         d.MaxLOD,
			ShaderRegister: s.shaderRegister + i,
			RegisterSpace:  s.registerSpace,
			Visibility:     s.visibility,
		})
	}
	return descs, nil
}

func (s StaticSamplerNativeDesc) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"Filter\": %d,", s.Filter))
	buff.WriteString(fmt.Sprintf("\"AddressU\": %d,", s.AddressU))
	buff.WriteString(fmt.Sprintf("\"AddressV\": %d,", s.AddressV))
	buff.WriteString(fmt.Sprintf("\"AddressW\": %d,", s.AddressW))
	buff.WriteString(fmt.Sprintf("\"MipLODBias\": %g,", s.MipLODBias))
	buff.WriteString(fmt.Sprintf("\"MaxAnisotropy\": %d,", s.MaxAnisotropy))
	buff.WriteString(fmt.Sprintf("\"ComparisonFunc\": %d,", s.ComparisonFunc))
	buff.WriteString(fmt.Sprintf("\"BorderColor\": %d,", s.BorderColor))
	buff.WriteString(fmt.Sprintf("\"MinLOD\": %g,", s.MinLOD))
	buff.WriteString(fmt.Sprintf("\"MaxLOD\": %g,", s.MaxLOD))
	buff.WriteString(fmt.Sprintf("\"ShaderRegister\": %d,", s.ShaderRegister))
	buff.WriteString(fmt.Sprintf("\"RegisterSpace\": %d,", s.RegisterSpace))
	buff.WriteString(fmt.Sprintf("\"ShaderVisibility\": %d", s.Visibility))

	buff.WriteString("}")
	return buff.Bytes(), nil
}
