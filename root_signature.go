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
	"encoding/json"
	"fmt"
	"slices"

	"goarrg.com/debug"
	"goarrg.com/rhi/rsig/internal/util"
)

type commitMode uint8

const (
	commitModeUnfinalized commitMode = iota
	commitModeStaticMutable
	commitModeWithDynamic
)

func (m commitMode) String() string {
	switch m {
	case commitModeUnfinalized:
		return "Unfinalized"
	case commitModeStaticMutable:
		return "StaticMutable"
	case commitModeWithDynamic:
		return "WithDynamic"
	}
	abort("Unknown commitMode: %d", m)
	return ""
}

/*
RootSignature lays out the resources of every shader stage of a pipeline into root descriptor
tables and root CBVs. Slots are allocated while building, after Finalize the layout is
immutable and may be read concurrently.
*/
type RootSignature struct {
	noCopy util.NoCopy

	params rootParams

	// Indexed by stage index * numVariableTypes + bucket, mutable resources share the static bucket.
	srvCbvUavRootTablesMap [numShaderTypes * numVariableTypes]int
	samplerRootTablesMap   [numShaderTypes * numVariableTypes]int

	// Per heap type and declared variable type.
	totalSlots [numShaderVisibleHeapTypes][numVariableTypes]uint32

	staticSamplers []staticSamplerAttribs

	mode   commitMode
	device Device
	id     string
	native NativeRootSignature
	desc   RootSignatureDesc
}

func NewRootSignature() *RootSignature {
	s := RootSignature{}
	s.noCopy.Init()
	for i := range s.srvCbvUavRootTablesMap {
		s.srvCbvUavRootTablesMap[i] = invalidRootTableIndex
		s.samplerRootTablesMap[i] = invalidRootTableIndex
	}
	return &s
}

func (s *RootSignature) assertNotFinalized() {
	if s.mode != commitModeUnfinalized {
		abort("Root signature is already finalized")
	}
}

func (s *RootSignature) assertFinalized() {
	if s.mode == commitModeUnfinalized {
		abort("Root signature is not finalized")
	}
}

/*
AllocateResourceSlot assigns a root index and an offset within the root table to a shader resource.
A non array CBV gets its own root view, everything else goes into the table of its stage, heap type
and bucket where dynamic resources are kept apart from static and mutable ones.
*/
func (s *RootSignature) AllocateResourceSlot(shaderType ShaderType, attribs ShaderResourceAttribs, rangeType DescriptorRangeType) (rootIndex, offsetFromTableStart uint32) {
	s.noCopy.Check()
	s.assertNotFinalized()

	shaderInd, err := shaderType.Index()
	if err != nil {
		abort("Failed to allocate slot for %q: %s", attribs.Name, err)
	}
	visibility, err := ShaderVisibilityFromType(shaderType)
	if err != nil {
		abort("Failed to allocate slot for %q: %s", attribs.Name, err)
	}
	heapType, err := HeapTypeFromRangeType(rangeType)
	if err != nil {
		abort("Failed to allocate slot for %q: %s", attribs.Name, err)
	}
	if attribs.BindCount == 0 {
		abort("Failed to allocate slot for %q: BindCount must be at least 1", attribs.Name)
	}
	if attribs.VariableType >= numVariableTypes {
		abort("Failed to allocate slot for %q: unknown VariableType: %d", attribs.Name, attribs.VariableType)
	}

	if rangeType == DescriptorRangeTypeCBV && attribs.BindCount == 1 {
		rootIndex = s.params.nextRootIndex()
		s.params.addRootView(rootView{
			rootIndex:      rootIndex,
			shaderRegister: attribs.BindPoint,
			visibility:     visibility,
			variableType:   attribs.VariableType,
		})
		return rootIndex, 0
	}

	bucket := VariableTypeStatic
	if attribs.VariableType == VariableTypeDynamic {
		bucket = VariableTypeDynamic
	}
	key := shaderInd*numVariableTypes + int(bucket)

	tablesMap := &s.srvCbvUavRootTablesMap
	if heapType == DescriptorHeapTypeSampler {
		tablesMap = &s.samplerRootTablesMap
	}

	t := tablesMap[key]
	if t == invalidRootTableIndex {
		if s.params.numRootTables() >= maxRootTables {
			abort("Too many root tables, at most %d are supported", maxRootTables)
		}
		t = s.params.numRootTables()
		tablesMap[key] = t
		s.params.addRootTable(s.params.nextRootIndex(), visibility, bucket, 1)
	} else {
		s.params.addDescriptorRanges(t, 1)
	}

	tbl := s.params.tables[t]
	if tbl.visibility != visibility {
		abort("Root table %d visibility %s does not match %s", tbl.rootIndex, tbl.visibility, visibility)
	}

	offsetFromTableStart = tbl.tableSize
	s.params.setDescriptorRange(t, tbl.numRanges-1, DescriptorRange{
		RangeType:            rangeType,
		NumDescriptors:       attribs.BindCount,
		BaseShaderRegister:   attribs.BindPoint,
		RegisterSpace:        0,
		OffsetFromTableStart: offsetFromTableStart,
		VariableType:         attribs.VariableType,
	})

	return tbl.rootIndex, offsetFromTableStart
}

// AllocateStaticSamplers registers the static samplers of every shader, they get registers from InitStaticSampler.
func (s *RootSignature) AllocateStaticSamplers(shaders ...ShaderResources) {
	s.noCopy.Check()
	s.assertNotFinalized()

	total := len(s.staticSamplers)
	for _, shader := range shaders {
		total += len(shader.StaticSamplers)
	}
	s.staticSamplers = slices.Grow(s.staticSamplers, total-len(s.staticSamplers))

	for _, shader := range shaders {
		visibility, err := ShaderVisibilityFromType(shader.ShaderType)
		if err != nil {
			abort("Failed to allocate static samplers: %s", err)
		}
		for _, desc := range shader.StaticSamplers {
			s.staticSamplers = append(s.staticSamplers, staticSamplerAttribs{
				desc:       desc,
				visibility: visibility,
			})
		}
	}
}

/*
InitStaticSampler binds the sampler variable of textureName to the first static sampler
registered for the same stage, returns false and logs if there is none.
*/
func (s *RootSignature) InitStaticSampler(shaderType ShaderType, textureName string, attribs ShaderResourceAttribs) bool {
	s.noCopy.Check()
	s.assertNotFinalized()

	visibility, err := ShaderVisibilityFromType(shaderType)
	if err != nil {
		abort("Failed to init static sampler for %q: %s", textureName, err)
	}

	for i := range s.staticSamplers {
		ss := &s.staticSamplers[i]
		if ss.visibility == visibility && ss.desc.TextureName == textureName {
			ss.shaderRegister = attribs.BindPoint
			ss.arraySize = attribs.BindCount
			ss.registerSpace = 0
			return true
		}
	}

	instance.logger.WPrintf("Failed to find static sampler for variable %q", textureName)
	return false
}

type ShaderResourceBinding struct {
	ShaderType           ShaderType
	Name                 string
	RangeType            DescriptorRangeType
	VariableType         VariableType
	IsStaticSampler      bool
	RootIndex            uint32
	OffsetFromTableStart uint32
}

type ShaderResourceBindings []ShaderResourceBinding

func (b ShaderResourceBindings) Find(shaderType ShaderType, name string) (ShaderResourceBinding, bool) {
	for _, binding := range b {
		if binding.ShaderType == shaderType && binding.Name == name {
			return binding, true
		}
	}
	return ShaderResourceBinding{}, false
}

/*
InitFromShaders allocates slots for every resource of every shader in order, sampler variables
of textures with a static sampler are resolved against it instead and get no slot.
*/
func (s *RootSignature) InitFromShaders(shaders ...ShaderResources) ShaderResourceBindings {
	s.noCopy.Check()
	s.AllocateStaticSamplers(shaders...)

	bindings := ShaderResourceBindings{}
	for _, shader := range shaders {
		for _, r := range shader.Resources {
			binding := ShaderResourceBinding{
				ShaderType:      shader.ShaderType,
				Name:            r.Name,
				RangeType:       r.RangeType,
				VariableType:    r.VariableType,
				IsStaticSampler: r.IsStaticSampler,
			}
			if r.IsStaticSampler {
				if r.RangeType != DescriptorRangeTypeSampler {
					abort("Resource %q is marked as a static sampler but is a %s", r.Name, r.RangeType)
				}
				if !s.InitStaticSampler(shader.ShaderType, r.TextureName, r.ShaderResourceAttribs) {
					continue
				}
			} else {
				binding.RootIndex, binding.OffsetFromTableStart = s.AllocateResourceSlot(shader.ShaderType, r.ShaderResourceAttribs, r.RangeType)
			}
			bindings = append(bindings, binding)
		}
	}

	instance.logger.VPrintf("Allocated %d shader resource bindings", len(bindings))
	return bindings
}

func (s *RootSignature) NumRootTables() int {
	s.noCopy.Check()
	return s.params.numRootTables()
}

func (s *RootSignature) NumRootViews() int {
	s.noCopy.Check()
	return s.params.numRootViews()
}

// RootTable returns the i-th table in allocation order, which is not its root index.
func (s *RootSignature) RootTable(i int) RootTableInfo {
	s.noCopy.Check()
	return s.params.rootTableInfo(i)
}

func (s *RootSignature) RootView(i int) RootViewInfo {
	s.noCopy.Check()
	return s.params.rootViewInfo(i)
}

// TotalSlots is only valid after Finalize.
func (s *RootSignature) TotalSlots(heapType DescriptorHeapType, variableType VariableType) uint32 {
	s.noCopy.Check()
	s.assertFinalized()
	return s.totalSlots[heapType][variableType]
}

func (s *RootSignature) IsFinalized() bool {
	s.noCopy.Check()
	return s.mode != commitModeUnfinalized
}

func (s *RootSignature) HasDynamicResources() bool {
	s.noCopy.Check()
	s.assertFinalized()
	return s.mode == commitModeWithDynamic
}

// Desc is the native layout the signature was created from, only valid after Finalize.
func (s *RootSignature) Desc() RootSignatureDesc {
	s.noCopy.Check()
	s.assertFinalized()
	d := s.desc
	d.Parameters = slices.Clone(s.desc.Parameters)
	d.StaticSamplers = slices.Clone(s.desc.StaticSamplers)
	return d
}

func (s *RootSignature) Native() NativeRootSignature {
	s.noCopy.Check()
	s.assertFinalized()
	return s.native
}

func (s *RootSignature) countSlots() {
	s.totalSlots = [numShaderVisibleHeapTypes][numVariableTypes]uint32{}
	s.params.processRootTables(func(t int, _ rootTable, ranges []DescriptorRange, heapType DescriptorHeapType) {
		for _, r := range ranges {
			s.totalSlots[heapType][r.VariableType] += r.NumDescriptors
		}
	})
}

/*
verifyRootParameters checks that every table is a tightly packed list of ranges of a single heap
type, the totals add up and every root index is used exactly once.
*/
func (s *RootSignature) verifyRootParameters() error {
	var dbgTotal [numShaderVisibleHeapTypes][numVariableTypes]uint32
	numRootParams := s.params.nextRootIndex()
	rootIndexUsed := make([]bool, numRootParams)

	useRootIndex := func(rootIndex uint32) error {
		if rootIndex >= numRootParams {
			return debug.Errorf("Root index %d is out of range [0, %d)", rootIndex, numRootParams)
		}
		if rootIndexUsed[rootIndex] {
			return debug.Errorf("Root index %d is used more than once", rootIndex)
		}
		rootIndexUsed[rootIndex] = true
		return nil
	}

	for t, tbl := range s.params.tables {
		if err := useRootIndex(tbl.rootIndex); err != nil {
			return err
		}
		ranges := s.params.tableRanges(t)
		if len(ranges) == 0 {
			return debug.Errorf("Root table at index %d has no descriptor ranges", tbl.rootIndex)
		}
		if tbl.variableType == VariableTypeMutable {
			return debug.Errorf("Root table at index %d uses the mutable bucket", tbl.rootIndex)
		}

		isSamplerTable := ranges[0].RangeType == DescriptorRangeTypeSampler
		heapType := DescriptorHeapTypeCbvSrvUav
		if isSamplerTable {
			heapType = DescriptorHeapTypeSampler
		}

		expectedOffset := uint32(0)
		for i, r := range ranges {
			if (r.RangeType == DescriptorRangeTypeSampler) != isSamplerTable {
				return debug.Errorf("Root table at index %d mixes samplers with other resources", tbl.rootIndex)
			}
			if r.NumDescriptors == 0 {
				return debug.Errorf("Range %d of root table at index %d is empty", i, tbl.rootIndex)
			}
			if r.OffsetFromTableStart != expectedOffset {
				return debug.Errorf("Range %d of root table at index %d starts at offset %d, expected %d",
					i, tbl.rootIndex, r.OffsetFromTableStart, expectedOffset)
			}
			if (r.VariableType == VariableTypeDynamic) != (tbl.variableType == VariableTypeDynamic) {
				return debug.Errorf("Range %d of root table at index %d has variable type %s in a %s table",
					i, tbl.rootIndex, r.VariableType, tbl.variableType)
			}
			expectedOffset += r.NumDescriptors
			dbgTotal[heapType][r.VariableType] += r.NumDescriptors
		}
		if expectedOffset != tbl.tableSize {
			return debug.Errorf("Root table at index %d has size %d, expected %d", tbl.rootIndex, tbl.tableSize, expectedOffset)
		}
	}

	for _, v := range s.params.views {
		if err := useRootIndex(v.rootIndex); err != nil {
			return err
		}
	}

	for i, used := range rootIndexUsed {
		if !used {
			return debug.Errorf("Root index %d is not used", i)
		}
	}

	if dbgTotal != s.totalSlots {
		return debug.Errorf("Slot totals %v do not match the tables %v", s.totalSlots, dbgTotal)
	}

	return nil
}

func (s *RootSignature) buildDesc() (RootSignatureDesc, error) {
	desc := RootSignatureDesc{
		Flags:      RootSignatureFlagAllowInputAssemblerInputLayout,
		Parameters: make([]RootParameterDesc, s.params.nextRootIndex()),
	}

	for t, tbl := range s.params.tables {
		desc.Parameters[tbl.rootIndex] = RootParameterDesc{
			ParameterType: RootParameterTypeDescriptorTable,
			Visibility:    tbl.visibility,
			Ranges:        slices.Clone(s.params.tableRanges(t)),
		}
	}
	for _, v := range s.params.views {
		desc.Parameters[v.rootIndex] = RootParameterDesc{
			ParameterType:  RootParameterTypeCBV,
			Visibility:     v.visibility,
			ShaderRegister: v.shaderRegister,
			RegisterSpace:  v.registerSpace,
		}
	}

	for i := range s.staticSamplers {
		ss := &s.staticSamplers[i]
		if ss.arraySize == 0 {
			instance.logger.VPrintf("Static sampler for %q is not used by any shader", ss.desc.TextureName)
			continue
		}
		descs, err := ss.nativeDescs()
		if err != nil {
			return RootSignatureDesc{}, err
		}
		desc.StaticSamplers = append(desc.StaticSamplers, descs...)
	}

	return desc, nil
}

/*
Finalize counts the slots, validates the layout and creates the native root signature,
identical layouts on the same device share one native object. The layout cannot change afterwards.
*/
func (s *RootSignature) Finalize(device Device) error {
	s.noCopy.Check()
	s.assertNotFinalized()

	s.countSlots()

	if instance.config.validation {
		if err := s.verifyRootParameters(); err != nil {
			abort("Invalid root signature: %s\n%s", err, prettyString(s))
		}
	}

	desc, err := s.buildDesc()
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to build root signature")
	}
	if cost := desc.Cost(); cost > instance.config.maxRootSignatureDWords {
		return debug.ErrorWrapf(ErrorRootSignatureTooLarge{}, "Root signature costs %d DWORDs, limit is %d",
			cost, instance.config.maxRootSignatureDWords)
	}
	if len(desc.StaticSamplers) > int(instance.config.maxStaticSamplers) {
		return debug.ErrorWrapf(ErrorRootSignatureTooLarge{}, "Root signature has %d static samplers, limit is %d",
			len(desc.StaticSamplers), instance.config.maxStaticSamplers)
	}

	serializedDesc, err := json.Marshal(&desc)
	if err != nil {
		return debug.ErrorWrapf(err, "Failed to serialize root signature")
	}

	id := genID(s.params.id(), jsonString(desc.StaticSamplers))
	native, err := instance.rootSignatureCache.createOrRetrieveRootSignature(device, id, serializedDesc)
	if err != nil {
		return err
	}

	s.device = device
	s.id = id
	s.native = native
	s.desc = desc
	s.staticSamplers = nil

	if s.totalSlots[DescriptorHeapTypeCbvSrvUav][VariableTypeDynamic] != 0 ||
		s.totalSlots[DescriptorHeapTypeSampler][VariableTypeDynamic] != 0 {
		s.mode = commitModeWithDynamic
	} else {
		s.mode = commitModeStaticMutable
	}

	instance.logger.VPrintf("Finalized root signature: %s", prettyString(s))
	return nil
}

// Destroy releases the native root signature, the RootSignature is dead afterwards.
func (s *RootSignature) Destroy() {
	s.noCopy.Check()
	if s.mode != commitModeUnfinalized {
		instance.rootSignatureCache.releaseRootSignature(s.device, s.id)
	}
	s.native = nil
	s.device = nil
	s.noCopy.Close()
}

func (s *RootSignature) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"mode\": %q,", s.mode.String()))
	buff.WriteString(fmt.Sprintf("\"params\": %s,", jsonString(&s.params)))

	buff.WriteString("\"srvCbvUavRootTablesMap\": [")
	for _, t := range s.srvCbvUavRootTablesMap {
		buff.WriteString(fmt.Sprintf("%d,", t))
	}
	buff.Truncate(buff.Len() - 1)
	buff.WriteString("],")

	buff.WriteString("\"samplerRootTablesMap\": [")
	for _, t := range s.samplerRootTablesMap {
		buff.WriteString(fmt.Sprintf("%d,", t))
	}
	buff.Truncate(buff.Len() - 1)
	buff.WriteString("],")

	buff.WriteString("\"totalSlots\": {")
	for h := DescriptorHeapType(0); h < numShaderVisibleHeapTypes; h++ {
		buff.WriteString(fmt.Sprintf("%q: {", h.String()))
		for v := VariableType(0); v < numVariableTypes; v++ {
			buff.WriteString(fmt.Sprintf("%q: %d,", v.String(), s.totalSlots[h][v]))
		}
		buff.Truncate(buff.Len() - 1)
		buff.WriteString("},")
	}
	buff.Truncate(buff.Len() - 1)
	buff.WriteString("},")

	buff.WriteString(fmt.Sprintf("\"numStaticSamplers\": %d", len(s.staticSamplers)+len(s.desc.StaticSamplers)))

	buff.WriteString("}")
	return buff.Bytes(), nil
}
