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
	"slices"
)

const (
	invalidRootTableIndex = -1
	maxRootTables         = 255
)

type rootTable struct {
	rootIndex    uint32
	visibility   ShaderVisibility
	variableType VariableType
	tableSize    uint32
	firstRange   int
	numRanges    int
}

type rootView struct {
	rootIndex      uint32
	shaderRegister uint32
	registerSpace  uint32
	visibility     ShaderVisibility
	variableType   VariableType
}

/*
rootParams keeps every table's ranges packed back to back in a single slice,
tables are addressed by their array index which is not their root index.
*/
type rootParams struct {
	tables []rootTable
	views  []rootView
	ranges []DescriptorRange
}

func (p *rootParams) numRootTables() int {
	return len(p.tables)
}

func (p *rootParams) numRootViews() int {
	return len(p.views)
}

// nextRootIndex is the next available root index past all allocated tables and views.
func (p *rootParams) nextRootIndex() uint32 {
	return uint32(len(p.tables) + len(p.views))
}

func (p *rootParams) tableRanges(t int) []DescriptorRange {
	tbl := p.tables[t]
	return p.ranges[tbl.firstRange : tbl.firstRange+tbl.numRanges : tbl.firstRange+tbl.numRanges]
}

/*
extend reallocates the arena with room for the extra tables, views and ranges,
extra ranges go to the end of tableToAddRanges or, when it is invalidRootTableIndex,
to the end of the arena for a table about to be appended.
*/
func (p *rootParams) extend(numExtraTables, numExtraViews, numExtraRanges int, tableToAddRanges int) {
	if numExtraTables <= 0 && numExtraViews <= 0 && numExtraRanges <= 0 {
		abort("At least one root table, root view or descriptor range must be added")
	}
	if tableToAddRanges != invalidRootTableIndex && numExtraTables != 0 {
		abort("Cannot extend a descriptor table while adding new tables")
	}

	tables := make([]rootTable, len(p.tables), len(p.tables)+numExtraTables)
	views := make([]rootView, len(p.views), len(p.views)+numExtraViews)
	ranges := make([]DescriptorRange, 0, len(p.ranges)+numExtraRanges)

	for t, src := range p.tables {
		tables[t] = src
		tables[t].firstRange = len(ranges)
		ranges = append(ranges, p.tableRanges(t)...)
		if t == tableToAddRanges {
			ranges = growSlice(ranges, len(ranges)+numExtraRanges)
			tables[t].numRanges += numExtraRanges
		}
	}
	copy(views, p.views)

	p.tables = tables
	p.views = views
	p.ranges = ranges
}

func (p *rootParams) addRootView(view rootView) {
	p.extend(0, 1, 0, invalidRootTableIndex)
	p.views = append(p.views, view)
}

func (p *rootParams) addRootTable(rootIndex uint32, visibility ShaderVisibility, variableType VariableType, numRanges int) {
	p.extend(1, 0, numRanges, invalidRootTableIndex)
	p.tables = append(p.tables, rootTable{
		rootIndex:    rootIndex,
		visibility:   visibility,
		variableType: variableType,
		firstRange:   len(p.ranges),
		numRanges:    numRanges,
	})
	p.ranges = growSlice(p.ranges, len(p.ranges)+numRanges)
}

func (p *rootParams) addDescriptorRanges(t int, numExtraRanges int) {
	p.extend(0, 0, numExtraRanges, t)
}

func (p *rootParams) setDescriptorRange(t, r int, descriptorRange DescriptorRange) {
	tbl := &p.tables[t]
	if r >= tbl.numRanges {
		abort("Range %d is out of bounds of table %d with %d ranges", r, t, tbl.numRanges)
	}
	p.ranges[tbl.firstRange+r] = descriptorRange
	tbl.tableSize = max(tbl.tableSize, descriptorRange.OffsetFromTableStart+descriptorRange.NumDescriptors)
}

// processRootTables visits tables in array order.
func (p *rootParams) processRootTables(f func(t int, tbl rootTable, ranges []DescriptorRange, heapType DescriptorHeapType)) {
	for t, tbl := range p.tables {
		ranges := p.tableRanges(t)
		if len(ranges) == 0 || tbl.tableSize == 0 {
			abort("Unexpected empty descriptor table at root index %d", tbl.rootIndex)
		}
		heapType := DescriptorHeapTypeCbvSrvUav
		if ranges[0].RangeType == DescriptorRangeTypeSampler {
			heapType = DescriptorHeapTypeSampler
		}
		f(t, tbl, ranges, heapType)
	}
}

func (t rootTable) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"rootIndex\": %d,", t.rootIndex))
	buff.WriteString(fmt.Sprintf("\"visibility\": %q,", t.visibility.String()))
	buff.WriteString(fmt.Sprintf("\"variableType\": %q,", t.variableType.String()))
	buff.WriteString(fmt.Sprintf("\"tableSize\": %d,", t.tableSize))
	buff.WriteString(fmt.Sprintf("\"firstRange\": %d,", t.firstRange))
	buff.WriteString(fmt.Sprintf("\"numRanges\": %d", t.numRanges))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

func (v rootView) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"rootIndex\": %d,", v.rootIndex))
	buff.WriteString(fmt.Sprintf("\"shaderRegister\": %d,", v.shaderRegister))
	buff.WriteString(fmt.Sprintf("\"registerSpace\": %d,", v.registerSpace))
	buff.WriteString(fmt.Sprintf("\"visibility\": %q,", v.visibility.String()))
	buff.WriteString(fmt.Sprintf("\"variableType\": %q", v.variableType.String()))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

func (p *rootParams) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString("\"tables\": [")
	if len(p.tables) > 0 {
		for _, t := range p.tables {
			buff.WriteString(fmt.Sprintf("%s,", jsonString(t)))
		}
		buff.Truncate(buff.Len() - 1)
	}
	buff.WriteString("],")

	buff.WriteString("\"views\": [")
	if len(p.views) > 0 {
		for _, v := range p.views {
			buff.WriteString(fmt.Sprintf("%s,", jsonString(v)))
		}
		buff.Truncate(buff.Len() - 1)
	}
	buff.WriteString("],")

	buff.WriteString("\"ranges\": [")
	if len(p.ranges) > 0 {
		for _, r := range p.ranges {
			buff.WriteString(fmt.Sprintf("%s,", jsonString(r)))
		}
		buff.Truncate(buff.Len() - 1)
	}
	buff.WriteString("]")

	buff.WriteString("}")
	return buff.Bytes(), nil
}

type RootTableInfo struct {
	RootIndex    uint32
	Visibility   ShaderVisibility
	VariableType VariableType
	Size         uint32
	Ranges       []DescriptorRange
}

type RootViewInfo struct {
	RootIndex      uint32
	ShaderRegister uint32
	RegisterSpace  uint32
	Visibility     ShaderVisibility
	VariableType   VariableType
}

func (p *rootParams) rootTableInfo(t int) RootTableInfo {
	tbl := p.tables[t]
	return RootTableInfo{
		RootIndex:    tbl.rootIndex,
		Visibility:   tbl.visibility,
		VariableType: tbl.variableType,
		Size:         tbl.tableSize,
		Ranges:       slices.Clone(p.tableRanges(t)),
	}
}

func (p *rootParams) rootViewInfo(v int) RootViewInfo {
	view := p.views[v]
	return RootViewInfo{
		RootIndex:      view.rootIndex,
		ShaderRegister: view.shaderRegister,
		RegisterSpace:  view.registerSpace,
		Visibility:     view.visibility,
		VariableType:   view.variableType,
	}
}

// id identifies the layout, equal ids produce equal native parameter lists.
func (p *rootParams) id() string {
	items := make([]any, 0, len(p.tables)+len(p.ranges)+len(p.views))
	for t, tbl := range p.tables {
		items = append(items, "T"+genID(tbl.rootIndex, tbl.visibility, tbl.variableType))
		for _, r := range p.tableRanges(t) {
			items = append(items, "R"+genID(r.RangeType, r.NumDescriptors, r.BaseShaderRegister, r.RegisterSpace, r.OffsetFromTableStart))
		}
	}
	for _, v := range p.views {
		items = append(items, "V"+genID(v.rootIndex, v.shaderRegister, v.registerSpace, v.visibility))
	}
	return genID(items...)
}
