package app

import (
	"github.com/specialistvlad/flowgrid/internal/registry"
	"github.com/specialistvlad/flowgrid/modules/control"
	"github.com/specialistvlad/flowgrid/modules/env"
	"github.com/specialistvlad/flowgrid/modules/math"
	"github.com/specialistvlad/flowgrid/modules/print"
	"github.com/specialistvlad/flowgrid/modules/variables"
)

// coreModules is the definitive list of all modules that are compiled into
// the flowgrid binary.
var coreModules = []registry.Module{
	&control.Module{},
	&variables.Module{},
	&math.Module{},
	&print.Module{},
	&env.Module{},
}
