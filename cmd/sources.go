package cmd

import (
	"fmt"
	"slices"
)

// SourcesCmd represents the sources command
type SourcesCmd struct{}

func (s *SourcesCmd) Run(rc *runContext) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	rows := make([]sourceRow, 0, len(cfg.EnabledSources))
	for _, a := range registry.All() {
		rows = append(rows, sourceRow{
			adapter: a,
			enabled: slices.Contains(cfg.EnabledSources, a.Name()),
		})
	}
	for _, name := range cfg.EnabledSources {
		if _, ok := registry.Get(name); !ok {
			rows = append(rows, sourceRow{name: name, enabled: true, missing: true})
		}
	}

	_, err = fmt.Fprint(rc.out, renderSources(rows))
	return err
}
