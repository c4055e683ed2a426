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
	"strings"

	"goarrg.com/debug"
)

type ShaderType uint32

const (
	ShaderTypeVertex ShaderType = 1 << iota
	ShaderTypePixel
	ShaderTypeGeometry
	ShaderTypeHull
	ShaderTypeDomain
	ShaderTypeCompute
)

const numShaderTypes = 6

func (s ShaderType) String() string {
	str := ""

	if hasBits(s, ShaderTypeVertex) {
		str += "Vertex|"
	}
	if hasBits(s, ShaderTypePixel) {
		str += "Pixel|"
	}
	if hasBits(s, ShaderTypeGeometry) {
		str += "Geometry|"
	}
	if hasBits(s, ShaderTypeHull) {
		str += "Hull|"
	}
	if hasBits(s, ShaderTypeDomain) {
		str += "Domain|"
	}
	if hasBits(s, ShaderTypeCompute) {
		str += "Compute|"
	}

	return strings.TrimSuffix(str, "|")
}

// Index returns the position of a single stage shader type in [0, 6).
func (s ShaderType) Index() (int, error) {
	switch s {
	case ShaderTypeVertex:
		return 0, nil
	case ShaderTypePixel:
		return 1, nil
	case ShaderTypeGeometry:
		return 2, nil
	case ShaderTypeHull:
		return 3, nil
	case ShaderTypeDomain:
		return 4, nil
	case ShaderTypeCompute:
		return 5, nil
	}
	return -1, debug.ErrorWrapf(ErrorUnknownEnum{}, "ShaderType: 0x%X", uint32(s))
}

type ShaderVisibility uint32

const (
	ShaderVisibilityAll ShaderVisibility = iota
	ShaderVisibilityVertex
	ShaderVisibilityHull
	ShaderVisibilityDomain
	ShaderVisibilityGeometry
	ShaderVisibilityPixel
)

func (v ShaderVisibility) String() string {
	switch v {
	case ShaderVisibilityAll:
		return "All"
	case ShaderVisibilityVertex:
		return "Vertex"
	case ShaderVisibilityHull:
		return "Hull"
	case ShaderVisibilityDomain:
		return "Domain"
	case ShaderVisibilityGeometry:
		return "Geometry"
	case ShaderVisibilityPixel:
		return "Pixel"

	default:
		abort("Unknown ShaderVisibility: %d", uint32(v))
	}

	return ""
}

// ShaderVisibilityFromType maps a single stage to the visibility of its root parameters,
// compute shaders see everything.
func ShaderVisibilityFromType(s ShaderType) (ShaderVisibility, error) {
	switch s {
	case ShaderTypeVertex:
		return ShaderVisibilityVertex, nil
	case ShaderTypePixel:
		return ShaderVisibilityPixel, nil
	case ShaderTypeGeometry:
		return ShaderVisibilityGeometry, nil
	case ShaderTypeHull:
		return ShaderVisibilityHull, nil
	case ShaderTypeDomain:
		return ShaderVisibilityDomain, nil
	case ShaderTypeCompute:
		return ShaderVisibilityAll, nil
	}
	return ShaderVisibilityAll, debug.ErrorWrapf(ErrorUnknownEnum{}, "ShaderType: 0x%X", uint32(s))
}

func ShaderTypeFromVisibility(v ShaderVisibility) (ShaderType, error) {
	switch v {
	case ShaderVisibilityAll:
		return ShaderTypeCompute, nil
	case ShaderVisibilityVertex:
		return ShaderTypeVertex, nil
	case ShaderVisibilityHull:
		return ShaderTypeHull, nil
	case ShaderVisibilityDomain:
		return ShaderTypeDomain, nil
	case ShaderVisibilityGeometry:
		return ShaderTypeGeometry, nil
	case ShaderVisibilityPixel:
		return ShaderTypePixel, nil
	}
	return 0, debug.ErrorWrapf(ErrorUnknownEnum{}, "ShaderVisibility: %d", uint32(v))
}

// VariableType is how often a shader variable is expected to change.
type VariableType uint32

const (
	// Set once on the signature and never changed.
	VariableTypeStatic VariableType = iota
	// Set once per resource binding object.
	VariableTypeMutable
	// May change between every draw or dispatch.
	VariableTypeDynamic
)

const numVariableTypes = 3

func (t VariableType) String() string {
	switch t {
	case VariableTypeStatic:
		return "Static"
	case VariableTypeMutable:
		return "Mutable"
	case VariableTypeDynamic:
		return "Dynamic"

	default:
		abort("Unknown VariableType: %d", uint32(t))
	}

	return ""
}

// ShaderResourceAttribs is what reflection reports for one declared resource.
type ShaderResourceAttribs struct {
	Name         string
	BindPoint    uint32
	BindCount    uint32
	VariableType VariableType
}

type ShaderResource struct {
	ShaderResourceAttribs
	RangeType DescriptorRangeType

	// Set on samplers that are assigned to a static sampler, TextureName is the
	// texture the sampler is paired with.
	IsStaticSampler bool
	TextureName     string
}

type ShaderResources struct {
	ShaderType     ShaderType
	Resources      []ShaderResource
	StaticSamplers []StaticSamplerDesc
}
