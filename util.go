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
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

func toHex(v any) string {
	switch t := v.(type) {
	case DescriptorRangeType:
		return fmt.Sprintf("0x%02X", uint32(t))
	case DescriptorHeapType:
		return fmt.Sprintf("0x%02X", uint32(t))
	case ShaderVisibility:
		return fmt.Sprintf("0x%02X", uint32(t))
	case VariableType:
		return fmt.Sprintf("0x%02X", uint32(t))
	case uint32:
		return fmt.Sprintf("0x%02X", t)
	case CPUDescriptorHandle:
		return fmt.Sprintf("0x%016X", uintptr(t))
	case GPUDescriptorHandle:
		return fmt.Sprintf("0x%016X", uint64(t))
	case GPUVirtualAddress:
		return fmt.Sprintf("0x%016X", uint64(t))
	case uint64, uintptr:
		return fmt.Sprintf("0x%016X", t)
	}
	abort("Unknown/Unhandled type: %T", v)
	return ""
}

func genID(items ...any) string {
	sb := strings.Builder{}
	for _, i := range items {
		switch t := i.(type) {
		case string:
			sb.WriteString(t)
		default:
			sb.WriteString(toHex(i))
		}
		sb.WriteRune(',')
	}
	if sb.Len() == 0 {
		return "[]"
	}
	return "[" + sb.String()[:sb.Len()-1] + "]"
}

func jsonString(target any) string {
	bytes, err := json.Marshal(target)
	if err != nil {
		abort("%s", err)
	}
	return strings.TrimSpace(string(bytes))
}

func prettyString(target json.Marshaler) string {
	bytes, err := json.MarshalIndent(target, "", "    ")
	if err != nil {
		abort("%s", err)
	}
	return strings.TrimSpace(string(bytes))
}

func hasBits[N constraints.Unsigned](t, want N) bool {
	return (t & want) == want
}

func growSlice[S ~[]E, E any](s S, n int) S {
	if n -= len(s); n > 0 {
		s = append(s, make([]E, n)...)
	}

	return s
}
