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

type NativeRootSignature interface {
	Release()
}

type Device interface {
	// CreateRootSignature receives the JSON encoding of a RootSignatureDesc.
	CreateRootSignature(serializedDesc []byte) (NativeRootSignature, error)
	AllocateGPUDescriptors(heapType DescriptorHeapType, count uint32) (*DescriptorHeapAllocation, error)
	CopyDescriptor(dst, src CPUDescriptorHandle, heapType DescriptorHeapType)
}

/*
CommandContext records into a command list, transitions are recorded and not executed
so the context is expected to track the new state of the resource itself.
*/
type CommandContext interface {
	TransitionResource(resource StatefulResource, state ResourceState)
	SetDescriptorHeaps(heaps ShaderDescriptorHeaps)
	SetRootDescriptorTable(rootIndex uint32, table GPUDescriptorHandle, isCompute bool)
	SetRootConstantBufferView(rootIndex uint32, address GPUVirtualAddress, isCompute bool)
	AllocateDynamicGPUVisibleDescriptors(heapType DescriptorHeapType, count uint32) (*DescriptorHeapAllocation, error)
}

type StatefulResource interface {
	Name() string
	State() ResourceState
}

type Buffer interface {
	StatefulResource
	GPUAddress(contextID uint32) GPUVirtualAddress
}

type BufferView interface {
	Buffer() Buffer
	CPUDescriptorHandle() CPUDescriptorHandle
}

type TextureView interface {
	Texture() StatefulResource
	CPUDescriptorHandle() CPUDescriptorHandle
}

type Sampler interface {
	CPUDescriptorHandle() CPUDescriptorHandle
}

type ErrorUnknownEnum struct{}

func (ErrorUnknownEnum) Is(target error) bool {
	_, ok := target.(ErrorUnknownEnum)
	return ok
}

func (ErrorUnknownEnum) Error() string {
	return "Unknown Enum Value"
}

type ErrorOutOfDescriptors struct{}

func (ErrorOutOfDescriptors) Is(target error) bool {
	_, ok := target.(ErrorOutOfDescriptors)
	return ok
}

func (ErrorOutOfDescriptors) Error() string {
	return "Out Of Descriptors"
}

type ErrorRootSignatureTooLarge struct{}

func (ErrorRootSignatureTooLarge) Is(target error) bool {
	_, ok := target.(ErrorRootSignatureTooLarge)
	return ok
}

func (ErrorRootSignatureTooLarge) Error() string {
	return "Root Signature Too Large"
}
