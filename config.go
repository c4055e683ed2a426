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

	"goarrg.com/gmath"
)

const (
	maxRootSignatureDWords = 64
	maxStaticSamplers      = 2032
)

type Config struct {
	// Turns off layout validation at Finalize and resource state checks at commit
	// which are otherwise enabled unless built with the rsig_release tag.
	DisableValidation bool

	// Root signature cost limit, a descriptor table costs 1 DWORD and a root CBV costs 2.
	// Zero means the D3D12 limit of 64.
	MaxRootSignatureDWords uint32

	// Zero means the D3D12 limit of 2032.
	MaxStaticSamplers uint32
}

func (c *Config) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"DisableValidation\": %t,", c.DisableValidation))
	buff.WriteString(fmt.Sprintf("\"MaxRootSignatureDWords\": %d,", c.MaxRootSignatureDWords))
	buff.WriteString(fmt.Sprintf("\"MaxStaticSamplers\": %d", c.MaxStaticSamplers))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

func (c *Config) validate() {
	if c.MaxRootSignatureDWords == 0 {
		c.MaxRootSignatureDWords = maxRootSignatureDWords
	} else if !gmath.InRange(c.MaxRootSignatureDWords, 1, maxRootSignatureDWords) {
		abort("Config.MaxRootSignatureDWords is outside of valid range [1, %d]", maxRootSignatureDWords)
	}
	if c.MaxStaticSamplers == 0 {
		c.MaxStaticSamplers = maxStaticSamplers
	} else if !gmath.InRange(c.MaxStaticSamplers, 1, maxStaticSamplers) {
		abort("Config.MaxStaticSamplers is outside of valid range [1, %d]", maxStaticSamplers)
	}
}

type config struct {
	validation             bool
	maxRootSignatureDWords uint32
	maxStaticSamplers      uint32
}

func defaultConfig() config {
	return config{
		validation:             debugBuild,
		maxRootSignatureDWords: maxRootSignatureDWords,
		maxStaticSamplers:      maxStaticSamplers,
	}
}

func (c *config) use(user Config) {
	c.validation = debugBuild && !user.DisableValidation
	c.maxRootSignatureDWords = user.MaxRootSignatureDWords
	c.maxStaticSamplers = user.MaxStaticSamplers
}
