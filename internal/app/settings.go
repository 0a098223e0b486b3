package app

import (
	"time"

	"github.com/vk/tickflow/internal/executor"
)

// runSettings are the effective run parameters: command line first, then
// the description's graph block, then defaults.
type runSettings struct {
	strategy executor.Strategy
	culling  bool
	ticks    int
	workers  int
	interval time.Duration
}

func (a *App) settings() (runSettings, error) {
	file := a.model.Settings
	s := runSettings{culling: true}

	name := a.cfg.Strategy
	if name == "" {
		name = file.Strategy
	}
	if name != "" {
		strategy, err := executor.ParseStrategy(name)
		if err != nil {
			return runSettings{}, err
		}
		s.strategy = strategy
	}

	switch {
	case a.cfg.Culling != nil:
		s.culling = *a.cfg.Culling
	case file.Culling != nil:
		s.culling = *file.Culling
	}
	s.workers = firstPositive(a.cfg.Workers, file.Workers)
	s.interval = max(a.cfg.Interval, 0)
	if s.interval == 0 {
		s.interval = max(file.Interval, 0)
	}
	// A paced run without a tick count runs until cancelled.
	s.ticks = firstPositive(a.cfg.Ticks, file.Ticks)
	if s.ticks == 0 && s.interval == 0 {
		s.ticks = 1
	}
	return s, nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
