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

package util

import "goarrg.com/debug"

/*
NoCopy guards types that hand out pointers to themselves or own device objects. Embed it,
Init it in the constructor, Check it on every method and Close it on Destroy/Release.
*/
type NoCopy struct {
	addr   *NoCopy
	closed bool
}

func (n *NoCopy) Init() {
	if n.addr != nil || n.closed {
		abort("NoCopy initialized twice")
	}
	n.addr = n
}

// Alive reports whether the value was initialized in place and not closed yet.
func (n *NoCopy) Alive() bool {
	return n.addr == n
}

func (n *NoCopy) Check() {
	switch {
	case n.addr == n:
		return
	case n.closed:
		abort("Use of a destroyed or released value: \n%s", debug.StackTrace(0))
	case n.addr == nil:
		abort("Use of a zero value, it must be created by its constructor: \n%s", debug.StackTrace(0))
	default:
		abort("Illegal copy by value: \n%s", debug.StackTrace(0))
	}
}

func (n *NoCopy) Close() {
	n.addr = nil
	n.closed = true
}

// Lock and Unlock let go vet's copylocks check flag copies.
func (*NoCopy) Lock()   {}
func (*NoCopy) Unlock() {}
