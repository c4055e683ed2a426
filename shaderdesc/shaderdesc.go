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

/*
Package shaderdesc decodes shader resource lists from YAML, for pipelines whose reflection
data is produced offline:

	shaders:
	  - type: pixel
	    resources:
	      - {name: g_Texture, range: srv, bindPoint: 0, variable: mutable}
	      - {name: g_Texture_sampler, range: sampler, bindPoint: 0, texture: g_Texture}
	    staticSamplers:
	      - {texture: g_Texture, minFilter: linear, magFilter: linear, mipFilter: linear}

Samplers paired with a texture that has a static sampler in the same shader are marked as static.
*/
package shaderdesc

import (
	"errors"
	"io"
	"os"

	"goarrg.com/debug"
	"goarrg.com/rhi/rsig"
	"gopkg.in/yaml.v3"
)

type Resource struct {
	Name      string       `yaml:"name"`
	Range     RangeType    `yaml:"range"`
	BindPoint uint32       `yaml:"bindPoint"`
	BindCount uint32       `yaml:"bindCount"`
	Variable  VariableType `yaml:"variable"`
	// Samplers only, the texture the sampler is used with.
	Texture string `yaml:"texture"`
}

type StaticSampler struct {
	Texture        string             `yaml:"texture"`
	MinFilter      FilterType         `yaml:"minFilter"`
	MagFilter      FilterType         `yaml:"magFilter"`
	MipFilter      FilterType         `yaml:"mipFilter"`
	AddressU       AddressMode        `yaml:"addressU"`
	AddressV       AddressMode        `yaml:"addressV"`
	AddressW       AddressMode        `yaml:"addressW"`
	MipLODBias     float32            `yaml:"mipLODBias"`
	MaxAnisotropy  uint32             `yaml:"maxAnisotropy"`
	ComparisonFunc ComparisonFunction `yaml:"comparisonFunc"`
	BorderColor    [4]float32         `yaml:"borderColor"`
	MinLOD         float32            `yaml:"minLOD"`
	MaxLOD         *float32           `yaml:"maxLOD"`
}

type Shader struct {
	Type           ShaderType      `yaml:"type"`
	Resources      []Resource      `yaml:"resources"`
	StaticSamplers []StaticSampler `yaml:"staticSamplers"`
}

type Document struct {
	Shaders []Shader `yaml:"shaders"`
}

const defaultMaxLOD = float32(3.402823466e+38)

func (s *StaticSampler) desc() rsig.StaticSamplerDesc {
	addressMode := func(m AddressMode) rsig.TextureAddressMode {
		if m == 0 {
			return rsig.TextureAddressModeClamp
		}
		return rsig.TextureAddressMode(m)
	}
	filter := func(f FilterType) rsig.FilterType {
		if f == 0 {
			return rsig.FilterTypeLinear
		}
		return rsig.FilterType(f)
	}
	maxLOD := defaultMaxLOD
	if s.MaxLOD != nil {
		maxLOD = *s.MaxLOD
	}
	return rsig.StaticSamplerDesc{
		TextureName: s.Texture,
		Desc: rsig.SamplerDesc{
			MinFilter:      filter(s.MinFilter),
			MagFilter:      filter(s.MagFilter),
			MipFilter:      filter(s.MipFilter),
			AddressU:       addressMode(s.AddressU),
			AddressV:       addressMode(s.AddressV),
			AddressW:       addressMode(s.AddressW),
			MipLODBias:     s.MipLODBias,
			MaxAnisotropy:  s.MaxAnisotropy,
			ComparisonFunc: rsig.ComparisonFunction(s.ComparisonFunc),
			BorderColor:    s.BorderColor,
			MinLOD:         s.MinLOD,
			MaxLOD:         maxLOD,
		},
	}
}

// ShaderResources converts the document, BindCount defaults to 1.
func (d *Document) ShaderResources() ([]rsig.ShaderResources, error) {
	ret := make([]rsig.ShaderResources, 0, len(d.Shaders))
	seenStages := rsig.ShaderType(0)

	for i, shader := range d.Shaders {
		shaderType := rsig.ShaderType(shader.Type)
		if shaderType == 0 {
			return nil, debug.Errorf("Shader %d has no type", i)
		}
		if seenStages&shaderType != 0 {
			return nil, debug.Errorf("Shader %d: more than one %s shader", i, shaderType)
		}
		seenStages |= shaderType

		resources := rsig.ShaderResources{ShaderType: shaderType}
		staticSamplerTextures := map[string]bool{}
		for j := range shader.StaticSamplers {
			ss := &shader.StaticSamplers[j]
			if ss.Texture == "" {
				return nil, debug.Errorf("%s shader: static sampler %d has no texture", shaderType, j)
			}
			staticSamplerTextures[ss.Texture] = true
			resources.StaticSamplers = append(resources.StaticSamplers, ss.desc())
		}

		names := map[string]bool{}
		for _, r := range shader.Resources {
			if r.Name == "" {
				return nil, debug.Errorf("%s shader: resource with no name", shaderType)
			}
			if names[r.Name] {
				return nil, debug.Errorf("%s shader: duplicate resource %q", shaderType, r.Name)
			}
			names[r.Name] = true

			rangeType := rsig.DescriptorRangeType(r.Range)
			if r.Texture != "" && rangeType != rsig.DescriptorRangeTypeSampler {
				return nil, debug.Errorf("%s shader: %q is a %s but has a texture", shaderType, r.Name, rangeType)
			}
			bindCount := r.BindCount
			if bindCount == 0 {
				bindCount = 1
			}
			resources.Resources = append(resources.Resources, rsig.ShaderResource{
				ShaderResourceAttribs: rsig.ShaderResourceAttribs{
					Name:         r.Name,
					BindPoint:    r.BindPoint,
					BindCount:    bindCount,
					VariableType: rsig.VariableType(r.Variable),
				},
				RangeType:       rangeType,
				IsStaticSampler: rangeType == rsig.DescriptorRangeTypeSampler && staticSamplerTextures[r.Texture],
				TextureName:     r.Texture,
			})
		}

		ret = append(ret, resources)
	}

	return ret, nil
}

func Decode(r io.Reader) ([]rsig.ShaderResources, error) {
	doc := Document{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, debug.ErrorWrapf(err, "Failed to decode shader resources")
	}
	return doc.ShaderResources()
}

func DecodeFile(path string) ([]rsig.ShaderResources, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to open shader resources")
	}
	defer f.Close()

	shaders, err := Decode(f)
	if err != nil {
		return nil, debug.ErrorWrapf(err, "%s", path)
	}
	return shaders, nil
}
