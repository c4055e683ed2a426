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
	"sync"

	"goarrg.com"
	"goarrg.com/debug"
	"goarrg.com/rhi/rsig/internal/util"
)

type platform struct{}

func (platform) Abort()                           { panic("Fatal Error") }
func (platform) AbortPopup(f string, args ...any) { panic("Fatal Error") }

type state struct {
	platform goarrg.PlatformInterface
	logger   *debug.Logger
	config   config

	rootSignatureCache rootSignatureCache
}

var instanceInitOnce sync.Once

var instance = state{
	platform: platform{},
	logger:   debug.NewLogger("rsig"),
	config:   defaultConfig(),

	rootSignatureCache: rootSignatureCache{cache: map[Device]map[string]*cachedRootSignature{}},
}

func abort(fmt string, args ...any) {
	instance.logger.EPrintf(fmt, args...)
	instance.platform.Abort()
}

func SetLogLevel(l uint32) {
	instance.logger.SetLevel(l)
	util.SetLogLevel(l)
}

/*
Init replaces the default platform and configuration, only the first call has any effect.
Calling it is optional, without it validation follows the build and aborts panic.
*/
func Init(platform goarrg.PlatformInterface, config Config) {
	instanceInitOnce.Do(func() {
		instance.platform = platform
		util.Init(platform)
		config.validate()
		instance.logger.IPrintf("User requested config: %s", prettyString(&config))
		instance.config.use(config)
	})
}
