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

package managed

import (
	"bytes"
	"fmt"

	"goarrg.com/rhi/rsig"
	"goarrg.com/rhi/rsig/internal/util"
)

type CommandType uint32

const (
	CommandTypeTransition CommandType = iota
	CommandTypeSetDescriptorHeaps
	CommandTypeSetRootDescriptorTable
	CommandTypeSetRootConstantBufferView
)

func (t CommandType) String() string {
	switch t {
	case CommandTypeTransition:
		return "Transition"
	case CommandTypeSetDescriptorHeaps:
		return "SetDescriptorHeaps"
	case CommandTypeSetRootDescriptorTable:
		return "SetRootDescriptorTable"
	case CommandTypeSetRootConstantBufferView:
		return "SetRootConstantBufferView"
	}
	abort("Unknown CommandType: %d", t)
	return ""
}

type Command struct {
	Type CommandType

	// Transition
	Resource rsig.StatefulResource
	State    rsig.ResourceState

	// SetDescriptorHeaps
	Heaps rsig.ShaderDescriptorHeaps

	// SetRootDescriptorTable and SetRootConstantBufferView
	RootIndex uint32
	Table     rsig.GPUDescriptorHandle
	Address   rsig.GPUVirtualAddress
	IsCompute bool
}

func (c Command) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("{")

	buff.WriteString(fmt.Sprintf("\"type\": %q", c.Type.String()))
	switch c.Type {
	case CommandTypeTransition:
		buff.WriteString(fmt.Sprintf(",\"resource\": %q,", c.Resource.Name()))
		buff.WriteString(fmt.Sprintf("\"state\": %q", c.State.String()))
	case CommandTypeSetRootDescriptorTable:
		buff.WriteString(fmt.Sprintf(",\"rootIndex\": %d,", c.RootIndex))
		buff.WriteString(fmt.Sprintf("\"table\": \"%#x\",", c.Table))
		buff.WriteString(fmt.Sprintf("\"isCompute\": %t", c.IsCompute))
	case CommandTypeSetRootConstantBufferView:
		buff.WriteString(fmt.Sprintf(",\"rootIndex\": %d,", c.RootIndex))
		buff.WriteString(fmt.Sprintf("\"address\": \"%#x\",", c.Address))
		buff.WriteString(fmt.Sprintf("\"isCompute\": %t", c.IsCompute))
	}

	buff.WriteString("}")
	return buff.Bytes(), nil
}

/*
CommandList implements rsig.CommandContext by recording commands, transitions of resources
implementing Stateful take effect immediately. It is the user's responsibility to handle sync.
*/
type CommandList struct {
	noCopy   util.NoCopy
	dynamic  [2]*DynamicDescriptorAllocator
	commands []Command
}

func NewCommandList(device *Device, dynamicChunkSize uint32) *CommandList {
	l := CommandList{}
	for h := range l.dynamic {
		l.dynamic[h] = NewDynamicDescriptorAllocator(device.shaderVisible[h], dynamicChunkSize)
	}
	l.noCopy.Init()
	return &l
}

func (l *CommandList) TransitionResource(resource rsig.StatefulResource, state rsig.ResourceState) {
	l.noCopy.Check()
	l.commands = append(l.commands, Command{Type: CommandTypeTransition, Resource: resource, State: state})
	if s, ok := resource.(Stateful); ok {
		s.SetState(state)
	}
}

func (l *CommandList) SetDescriptorHeaps(heaps rsig.ShaderDescriptorHeaps) {
	l.noCopy.Check()
	l.commands = append(l.commands, Command{Type: CommandTypeSetDescriptorHeaps, Heaps: heaps})
}

func (l *CommandList) SetRootDescriptorTable(rootIndex uint32, table rsig.GPUDescriptorHandle, isCompute bool) {
	l.noCopy.Check()
	l.commands = append(l.commands, Command{Type: CommandTypeSetRootDescriptorTable, RootIndex: rootIndex, Table: table, IsCompute: isCompute})
}

func (l *CommandList) SetRootConstantBufferView(rootIndex uint32, address rsig.GPUVirtualAddress, isCompute bool) {
	l.noCopy.Check()
	l.commands = append(l.commands, Command{Type: CommandTypeSetRootConstantBufferView, RootIndex: rootIndex, Address: address, IsCompute: isCompute})
}

func (l *CommandList) AllocateDynamicGPUVisibleDescriptors(heapType rsig.DescriptorHeapType, count uint32) (*rsig.DescriptorHeapAllocation, error) {
	l.noCopy.Check()
	if heapType > rsig.DescriptorHeapTypeSampler {
		abort("Unknown DescriptorHeapType: %d", heapType)
	}
	return l.dynamic[heapType].Allocate(count)
}

func (l *CommandList) Commands() []Command {
	l.noCopy.Check()
	return l.commands
}

// Reset clears the recorded commands and returns all dynamic descriptors, call once the GPU is done with them.
func (l *CommandList) Reset() {
	l.noCopy.Check()
	l.commands = l.commands[:0]
	for _, d := range l.dynamic {
		d.Reset()
	}
}

func (l *CommandList) Destroy() {
	l.noCopy.Check()
	for _, d := range l.dynamic {
		d.Destroy()
	}
	l.commands = nil
	l.noCopy.Close()
}

func (l *CommandList) MarshalJSON() ([]byte, error) {
	buff := bytes.Buffer{}
	buff.WriteString("[")

	if len(l.commands) > 0 {
		for _, c := range l.commands {
			b, err := c.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buff.Write(b)
			buff.WriteString(",")
		}
		buff.Truncate(buff.Len() - 1)
	}

	buff.WriteString("]")
	return buff.Bytes(), nil
}
