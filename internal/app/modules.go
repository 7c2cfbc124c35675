package app

import (
	"github.com/vk/chemrig/internal/registry"
	"github.com/vk/chemrig/modules/arduino"
	"github.com/vk/chemrig/modules/chemputer"
	"github.com/vk/chemrig/modules/cvc3000"
	"github.com/vk/chemrig/modules/huber"
	"github.com/vk/chemrig/modules/ikaret"
	"github.com/vk/chemrig/modules/ikarv10"
	"github.com/vk/chemrig/modules/julabocf41"
	"github.com/vk/chemrig/modules/simrig"
)

// coreModules is the definitive list of all hardware driver modules that
// are compiled into the binary.
var coreModules = []registry.Module{
	&chemputer.Module{},
	&ikaret.Module{},
	&ikarv10.Module{},
	&cvc3000.Module{},
	&julabocf41.Module{},
	&huber.Module{},
	&arduino.Module{},
}

// simModules replaces the whole hardware stack with logging fakes for
// simulated runs.
var simModules = []registry.Module{
	&simrig.Module{},
}
