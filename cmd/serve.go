package cmd

import (
	"github.com/lepinkainen/bookhound/internal/server"
)

// ServeCmd represents the serve command
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)"`
}

func (s *ServeCmd) Run(rc *runContext) error {
	a, err := newApp(rc.ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	addr := a.cfg.ServerAddr
	if s.Addr != "" {
		addr = s.Addr
	}

	srv := server.New(server.Config{
		Addr:              addr,
		AllowedOrigins:    a.cfg.AllowedOrigins,
		RequestsPerMinute: a.cfg.ServerRPM,
	}, server.Deps{
		Recommender: a.orchestrator,
		Cache:       a.cache,
		Sources:     a.registry,
		Profiles:    a.profiles,
	})

	return srv.ListenAndServe(rc.ctx)
}
