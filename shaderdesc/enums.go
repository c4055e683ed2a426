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

package shaderdesc

import (
	"strings"

	"goarrg.com/debug"
	"goarrg.com/rhi/rsig"
)

type ShaderType rsig.ShaderType

func (t *ShaderType) UnmarshalText(data []byte) error {
	switch normalize(data) {
	case "vertex", "vs":
		*t = ShaderType(rsig.ShaderTypeVertex)
	case "pixel", "ps", "fragment":
		*t = ShaderType(rsig.ShaderTypePixel)
	case "geometry", "gs":
		*t = ShaderType(rsig.ShaderTypeGeometry)
	case "hull", "hs":
		*t = ShaderType(rsig.ShaderTypeHull)
	case "domain", "ds":
		*t = ShaderType(rsig.ShaderTypeDomain)
	case "compute", "cs":
		*t = ShaderType(rsig.ShaderTypeCompute)
	default:
		return debug.Errorf("Unknown shader type: %q", data)
	}
	return nil
}

func (t ShaderType) MarshalText() (text []byte, err error) {
	return []byte(rsig.ShaderType(t).String()), nil
}

type RangeType rsig.DescriptorRangeType

func (t *RangeType) UnmarshalText(data []byte) error {
	switch normalize(data) {
	case "srv":
		*t = RangeType(rsig.DescriptorRangeTypeSRV)
	case "uav":
		*t = RangeType(rsig.DescriptorRangeTypeUAV)
	case "cbv":
		*t = RangeType(rsig.DescriptorRangeTypeCBV)
	case "sampler":
		*t = RangeType(rsig.DescriptorRangeTypeSampler)
	default:
		return debug.Errorf("Unknown range type: %q", data)
	}
	return nil
}

func (t RangeType) MarshalText() (text []byte, err error) {
	return []byte(rsig.DescriptorRangeType(t).String()), nil
}

type VariableType rsig.VariableType

func (t *VariableType) UnmarshalText(data []byte) error {
	switch normalize(data) {
	case "static":
		*t = VariableType(rsig.VariableTypeStatic)
	case "mutable":
		*t = VariableType(rsig.VariableTypeMutable)
	case "dynamic":
		*t = VariableType(rsig.VariableTypeDynamic)
	default:
		return debug.Errorf("Unknown variable type: %q", data)
	}
	return nil
}

func (t VariableType) MarshalText() (text []byte, err error) {
	return []byte(rsig.VariableType(t).String()), nil
}

type FilterType rsig.FilterType

func (f *FilterType) UnmarshalText(data []byte) error {
	switch normalize(data) {
	case "point":
		*f = FilterType(rsig.FilterTypePoint)
	case "linear":
		*f = FilterType(rsig.FilterTypeLinear)
	case "anisotropic":
		*f = FilterType(rsig.FilterTypeAnisotropic)
	case "comparisonpoint":
		*f = FilterType(rsig.FilterTypeComparisonPoint)
	case "comparisonlinear":
		*f = FilterType(rsig.FilterTypeComparisonLinear)
	case "comparisonanisotropic":
		*f = FilterType(rsig.FilterTypeComparisonAnisotropic)
	default:
		return debug.Errorf("Unknown filter type: %q", data)
	}
	return nil
}

func (f FilterType) MarshalText() (text []byte, err error) {
	return []byte(rsig.FilterType(f).String()), nil
}

type AddressMode rsig.TextureAddressMode

func (m *AddressMode) UnmarshalText(data []byte) error {
	switch normalize(data) {
	case "wrap":
		*m = AddressMode(rsig.TextureAddressModeWrap)
	case "mirror":
		*m = AddressMode(rsig.TextureAddressModeMirror)
	case "clamp":
		*m = AddressMode(rsig.TextureAddressModeClamp)
	case "border":
		*m = AddressMode(rsig.TextureAddressModeBorder)
	case "mirroronce":
		*m = AddressMode(rsig.TextureAddressModeMirrorOnce)
	default:
		return debug.Errorf("Unknown address mode: %q", data)
	}
	return nil
}

func (m AddressMode) MarshalText() (text []byte, err error) {
	return []byte(rsig.TextureAddressMode(m).String()), nil
}

type ComparisonFunction rsig.ComparisonFunction

func (c *ComparisonFunction) UnmarshalText(data []byte) error {
	switch normalize(data) {
	case "never":
		*c = ComparisonFunction(rsig.ComparisonFunctionNever)
	case "less":
		*c = ComparisonFunction(rsig.ComparisonFunctionLess)
	case "equal":
		*c = ComparisonFunction(rsig.ComparisonFunctionEqual)
	case "lessequal":
		*c = ComparisonFunction(rsig.ComparisonFunctionLessEqual)
	case "greater":
		*c = ComparisonFunction(rsig.ComparisonFunctionGreater)
	case "notequal":
		*c = ComparisonFunction(rsig.ComparisonFunctionNotEqual)
	case "greaterequal":
		*c = ComparisonFunction(rsig.ComparisonFunctionGreaterEqual)
	case "always":
		*c = ComparisonFunction(rsig.ComparisonFunctionAlways)
	default:
		return debug.Errorf("Unknown comparison function: %q", data)
	}
	return nil
}

func (c ComparisonFunction) MarshalText() (text []byte, err error) {
	return []byte(rsig.ComparisonFunction(c).String()), nil
}

// normalize makes enum names case insensitive and ignores underscores, "less_equal" == "LessEqual".
func normalize(data []byte) string {
	return strings.ReplaceAll(strings.ToLower(string(data)), "_", "")
}
