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

type CommitStats struct {
	TablesBound        uint32
	ViewsBound         uint32
	DescriptorsCopied  uint32
	UnboundDescriptors uint32
	Transitions        uint32
}

func (s *CommitStats) add(o CommitStats) {
	s.TablesBound += o.TablesBound
	s.ViewsBound += o.ViewsBound
	s.DescriptorsCopied += o.DescriptorsCopied
	s.UnboundDescriptors += o.UnboundDescriptors
	s.Transitions += o.Transitions
}

func (s *CommitStats) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"TablesBound\": %d,", s.TablesBound))
	buff.WriteString(fmt.Sprintf("\"ViewsBound\": %d,", s.ViewsBound))
	buff.WriteString(fmt.Sprintf("\"DescriptorsCopied\": %d,", s.DescriptorsCopied))
	buff.WriteString(fmt.Sprintf("\"UnboundDescriptors\": %d,", s.UnboundDescriptors))
	buff.WriteString(fmt.Sprintf("\"Transitions\": %d", s.Transitions))

	buff.WriteString("}")
	return buff.Bytes(), nil
}

// processCachedTableResources visits every slot of a table's ranges with its cached resource.
func processCachedTableResources(rootIndex uint32, ranges []DescriptorRange, cache *ShaderResourceCache,
	f func(offset uint32, r *DescriptorRange, res *CachedResource),
) {
	tbl := cache.RootTable(rootIndex)
	for i := range ranges {
		r := &ranges[i]
		for d := uint32(0); d < r.NumDescriptors; d++ {
			offset := r.OffsetFromTableStart + d
			f(offset, r, tbl.Resource(offset))
		}
	}
}

func verifyResourceType(rootIndex, offset uint32, r *DescriptorRange, res *CachedResource) {
	if !instance.config.validation {
		return
	}
	if !res.isBound() {
		if res.Object != nil || res.CPUDescriptorHandle != 0 {
			abort("Unbound slot %d of root table at index %d has a resource or descriptor", offset, rootIndex)
		}
		return
	}
	if res.Type.rangeType() != r.RangeType {
		abort("%s is bound to %s slot %d of root table at index %d", res.Type, r.RangeType, offset, rootIndex)
	}
}

func transitionResource(ctx CommandContext, res *CachedResource) bool {
	target, state := res.stateTarget()
	if target == nil || hasBits(target.State(), state) {
		return false
	}
	ctx.TransitionResource(target, state)
	return true
}

func verifyResourceState(res *CachedResource) {
	target, state := res.stateTarget()
	if target == nil || hasBits(target.State(), state) {
		return
	}
	instance.logger.EPrintf("Resource %q is not in %s state, current state: %s. Did you forget to call TransitionResources() or use TransitionAndCommitDescriptorHandles()?",
		target.Name(), state, target.State())
}

func (s *RootSignature) processTableResources(cache *ShaderResourceCache, ctx CommandContext, transition bool,
	rootIndex uint32, ranges []DescriptorRange, stats *CommitStats,
) {
	processCachedTableResources(rootIndex, ranges, cache, func(offset uint32, r *DescriptorRange, res *CachedResource) {
		verifyResourceType(rootIndex, offset, r, res)
		if res.CPUDescriptorHandle == 0 {
			if instance.config.validation {
				instance.logger.EPrintf("No resource is bound to %s slot %d of root table at index %d", r.RangeType, offset, rootIndex)
			}
			stats.UnboundDescriptors++
		}
		if transition {
			if transitionResource(ctx, res) {
				stats.Transitions++
			}
		} else if instance.config.validation {
			verifyResourceState(res)
		}
	})
}

func (s *RootSignature) commitStaticMutable(cache *ShaderResourceCache, ctx CommandContext, isCompute, transition bool) CommitStats {
	stats := CommitStats{}

	if heaps := cache.DescriptorHeaps(); !heaps.IsEmpty() {
		ctx.SetDescriptorHeaps(heaps)
	}

	s.params.processRootTables(func(_ int, tbl rootTable, ranges []DescriptorRange, heapType DescriptorHeapType) {
		if tbl.variableType == VariableTypeDynamic {
			abort("Dynamic root table at index %d in a signature without dynamic resources", tbl.rootIndex)
		}
		ctx.SetRootDescriptorTable(tbl.rootIndex, cache.ShaderVisibleTableGPUHandle(heapType, tbl.rootIndex), isCompute)
		stats.TablesBound++
		s.processTableResources(cache, ctx, transition, tbl.rootIndex, ranges, &stats)
	})

	return stats
}

func (s *RootSignature) commitWithDynamic(cache *ShaderResourceCache, ctx CommandContext, isCompute, transition bool) (CommitStats, error) {
	stats := CommitStats{}

	var dynamicSpace [numShaderVisibleHeapTypes]*DescriptorHeapAllocation
	defer func() {
		for _, a := range dynamicSpace {
			a.Release()
		}
	}()
	for h := range dynamicSpace {
		heapType := DescriptorHeapType(h)
		if n := s.totalSlots[h][VariableTypeDynamic]; n > 0 {
			alloc, err := ctx.AllocateDynamicGPUVisibleDescriptors(heapType, n)
			if err != nil {
				return stats, debug.ErrorWrapf(err, "Failed to allocate %d dynamic %s descriptors", n, heapType)
			}
			if alloc.NumHandles() != n {
				alloc.Release()
				abort("Allocated %d dynamic %s descriptors, requested %d", alloc.NumHandles(), heapType, n)
			}
			dynamicSpace[h] = alloc
		}
	}

	heaps := cache.DescriptorHeaps()
	if dynamicHeap := dynamicSpace[DescriptorHeapTypeCbvSrvUav].Heap(); dynamicHeap != nil {
		if heaps.CbvSrvUav == nil {
			heaps.CbvSrvUav = dynamicHeap
		} else if heaps.CbvSrvUav != dynamicHeap {
			abort("Static and dynamic CBV/SRV/UAV descriptors are allocated from different heaps")
		}
	}
	if dynamicHeap := dynamicSpace[DescriptorHeapTypeSampler].Heap(); dynamicHeap != nil {
		if heaps.Sampler == nil {
			heaps.Sampler = dynamicHeap
		} else if heaps.Sampler != dynamicHeap {
			abort("Static and dynamic sampler descriptors are allocated from different heaps")
		}
	}
	if !heaps.IsEmpty() {
		ctx.SetDescriptorHeaps(heaps)
	}

	var dynamicOffset [numShaderVisibleHeapTypes]uint32
	s.params.processRootTables(func(_ int, tbl rootTable, ranges []DescriptorRange, heapType DescriptorHeapType) {
		if tbl.variableType != VariableTypeDynamic {
			ctx.SetRootDescriptorTable(tbl.rootIndex, cache.ShaderVisibleTableGPUHandle(heapType, tbl.rootIndex), isCompute)
			stats.TablesBound++
			s.processTableResources(cache, ctx, transition, tbl.rootIndex, ranges, &stats)
			return
		}

		alloc := dynamicSpace[heapType]
		ctx.SetRootDescriptorTable(tbl.rootIndex, alloc.GPUHandle(dynamicOffset[heapType]), isCompute)
		stats.TablesBound++

		processCachedTableResources(tbl.rootIndex, ranges, cache, func(offset uint32, r *DescriptorRange, res *CachedResource) {
			verifyResourceType(tbl.rootIndex, offset, r, res)
			if transition {
				if transitionResource(ctx, res) {
					stats.Transitions++
				}
			} else if instance.config.validation {
				verifyResourceState(res)
			}

			if res.CPUDescriptorHandle == 0 {
				instance.logger.EPrintf("No resource is bound to dynamic %s slot %d of root table at index %d", r.RangeType, offset, tbl.rootIndex)
				stats.UnboundDescriptors++
			}
			cache.device.CopyDescriptor(alloc.CPUHandle(dynamicOffset[heapType]), res.CPUDescriptorHandle, heapType)
			dynamicOffset[heapType]++
			stats.DescriptorsCopied++
		})
	})

	for h := range dynamicOffset {
		if dynamicOffset[h] != s.totalSlots[h][VariableTypeDynamic] {
			abort("Copied %d dynamic %s descriptors, expected %d", dynamicOffset[h], DescriptorHeapType(h), s.totalSlots[h][VariableTypeDynamic])
		}
	}

	return stats, nil
}

func (s *RootSignature) commitDescriptorHandles(cache *ShaderResourceCache, ctx CommandContext, isCompute, transition bool) (CommitStats, error) {
	s.noCopy.Check()
	cache.noCopy.Check()
	if cache.device != s.device {
		abort("Resource cache and root signature belong to different devices")
	}

	switch s.mode {
	case commitModeStaticMutable:
		return s.commitStaticMutable(cache, ctx, isCompute, transition), nil
	case commitModeWithDynamic:
		return s.commitWithDynamic(cache, ctx, isCompute, transition)
	}
	abort("Root signature must be finalized before committing resources")
	return CommitStats{}, nil
}

/*
CommitDescriptorHandles binds every root table of the signature, dynamic tables get fresh space
from the context and their descriptors copied into it. With validation on, resources not in the
state their slot requires are logged.
*/
func (s *RootSignature) CommitDescriptorHandles(cache *ShaderResourceCache, ctx CommandContext, isCompute bool) (CommitStats, error) {
	return s.commitDescriptorHandles(cache, ctx, isCompute, false)
}

// TransitionAndCommitDescriptorHandles is CommitDescriptorHandles that also transitions resources to the required states.
func (s *RootSignature) TransitionAndCommitDescriptorHandles(cache *ShaderResourceCache, ctx CommandContext, isCompute bool) (CommitStats, error) {
	return s.commitDescriptorHandles(cache, ctx, isCompute, true)
}

// TransitionResources transitions the resources of every root table without binding anything.
func (s *RootSignature) TransitionResources(cache *ShaderResourceCache, ctx CommandContext) CommitStats {
	s.noCopy.Check()
	cache.noCopy.Check()
	s.assertFinalized()

	stats := CommitStats{}
	s.params.processRootTables(func(_ int, tbl rootTable, ranges []DescriptorRange, _ DescriptorHeapType) {
		processCachedTableResources(tbl.rootIndex, ranges, cache, func(offset uint32, r *DescriptorRange, res *CachedResource) {
			verifyResourceType(tbl.rootIndex, offset, r, res)
			if transitionResource(ctx, res) {
				stats.Transitions++
			}
		})
	})
	return stats
}

/*
CommitRootViews binds the address of the buffer in every root CBV as seen by contextID,
transitioning it to a constant buffer first. An empty root view binds address zero.
*/
func (s *RootSignature) CommitRootViews(cache *ShaderResourceCache, ctx CommandContext, isCompute bool, contextID uint32) CommitStats {
	s.noCopy.Check()
	cache.noCopy.Check()
	s.assertFinalized()

	stats := CommitStats{}
	for _, v := range s.params.views {
		res := cache.RootTable(v.rootIndex).Resource(0)
		address := GPUVirtualAddress(0)

		switch res.Type {
		case CachedResourceTypeCBV:
			buffer := res.Object.(Buffer)
			if transitionResource(ctx, res) {
				stats.Transitions++
			}
			address = buffer.GPUAddress(contextID)
		case CachedResourceTypeUnknown:
			instance.logger.EPrintf("No constant buffer is bound to root view at index %d", v.rootIndex)
			stats.UnboundDescriptors++
		default:
			abort("%s is bound to root view at index %d", res.Type, v.rootIndex)
		}

		ctx.SetRootConstantBufferView(v.rootIndex, address, isCompute)
		stats.ViewsBound++
	}
	return stats
}

/*
CommitResources is the full per draw sequence: transition and commit the tables when
transition is set, commit them with state checks otherwise, then bind the root views.
*/
func (s *RootSignature) CommitResources(cache *ShaderResourceCache, ctx CommandContext, isCompute, transition bool, contextID uint32) (CommitStats, error) {
	stats, err := s.commitDescriptorHandles(cache, ctx, isCompute, transition)
	if err != nil {
		return stats, err
	}
	stats.add(s.CommitRootViews(cache, ctx, isCompute, contextID))
	return stats, nil
}
