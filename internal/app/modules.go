package app

import (
	"github.com/vk/tickflow/internal/publish"
	"github.com/vk/tickflow/internal/registry"
	"github.com/vk/tickflow/modules/arith"
	"github.com/vk/tickflow/modules/env_vars"
	"github.com/vk/tickflow/modules/message"
	"github.com/vk/tickflow/modules/print"
	"github.com/vk/tickflow/modules/socketio"
)

// coreModules is the definitive list of all modules that are compiled into
// the tickflow binary.
func (a *App) coreModules() []registry.Module {
	return []registry.Module{
		&arith.Module{},
		&message.Module{},
		&env_vars.Module{},
		&print.Module{Out: a.outW},
		&socketio.Module{
			Publisher: func() *publish.Publisher { return a.publisher },
			RunID:     a.runID,
		},
	}
}
