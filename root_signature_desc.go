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
)

type RootParameterType uint32

const (
	RootParameterTypeDescriptorTable RootParameterType = iota
	RootParameterTypeCBV             RootParameterType = 2
)

func (t RootParameterType) String() string {
	switch t {
	case RootParameterTypeDescriptorTable:
		return "DescriptorTable"
	case RootParameterTypeCBV:
		return "CBV"
	}
	abort("Unknown RootParameterType: %d", t)
	return ""
}

// Cost in DWORDs of the parameter in the root signature.
func (t RootParameterType) Cost() uint32 {
	switch t {
	case RootParameterTypeDescriptorTable:
		return 1
	case RootParameterTypeCBV:
		return 2
	}
	abort("Unknown RootParameterType: %d", t)
	return 0
}

type RootParameterDesc struct {
	ParameterType RootParameterType
	Visibility    ShaderVisibility

	// DescriptorTable only.
	Ranges []DescriptorRange

	// CBV only.
	ShaderRegister uint32
	RegisterSpace  uint32
}

func (p *RootParameterDesc) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"ParameterType\": %d,", p.ParameterType))
	switch p.ParameterType {
	case RootParameterTypeDescriptorTable:
		buff.WriteString("\"Ranges\": [")
		if len(p.Ranges) > 0 {
			for _, r := range p.Ranges {
				buff.WriteString(fmt.Sprintf("%s,", jsonString(r)))
			}
			buff.Truncate(buff.Len() - 1)
		}
		buff.WriteString("],")
	case RootParameterTypeCBV:
		buff.WriteString(fmt.Sprintf("\"ShaderRegister\": %d,", p.ShaderRegister))
		buff.WriteString(fmt.Sprintf("\"RegisterSpace\": %d,", p.RegisterSpace))
	}
	buff.WriteString(fmt.Sprintf("\"ShaderVisibility\": %d", p.Visibility))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

const RootSignatureFlagAllowInputAssemblerInputLayout uint32 = 0x1

/*
RootSignatureDesc is the native layout handed to Device.CreateRootSignature in serialized form,
parameters are ordered by root index.
*/
type RootSignatureDesc struct {
	Flags          uint32
	Parameters     []RootParameterDesc
	StaticSamplers []StaticSamplerNativeDesc
}

func (d *RootSignatureDesc) Cost() uint32 {
	cost := uint32(0)
	for _, p := range d.Parameters {
		cost += p.ParameterType.Cost()
	}
	return cost
}

func (d *RootSignatureDesc) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"Flags\": %d,", d.Flags))

	buff.WriteString("\"Parameters\": [")
	if len(d.Parameters) > 0 {
		for i := range d.Parameters {
			buff.WriteString(fmt.Sprintf("%s,", jsonString(&d.Parameters[i])))
		}
		buff.Truncate(buff.Len() - 1)
	}
	buff.WriteString("],")

	buff.WriteString("\"StaticSamplers\": [")
	if len(d.StaticSamplers) > 0 {
		for _, s := range d.StaticSamplers {
			buff.WriteString(fmt.Sprintf("%s,", jsonString(s)))
		}
		buff.Truncate(buff.Len() - 1)
	}
	buff.WriteString("]")

	buff.WriteString("}")
	return buff.Bytes(), nil
}
