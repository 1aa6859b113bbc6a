package cmd

import (
	"fmt"

	"github.com/lepinkainen/bookhound/internal/config"
	"github.com/lepinkainen/bookhound/internal/profile"
)

// ProfileCmd represents the profile command and its subcommands
type ProfileCmd struct {
	Import ProfileImportCmd `cmd:"" help:"Import profiles from a YAML file"`
	Show   ProfileShowCmd   `cmd:"" help:"Show a stored profile"`
	List   ProfileListCmd   `cmd:"" help:"List stored profiles"`
	Delete ProfileDeleteCmd `cmd:"" help:"Delete a stored profile"`
}

// ProfileImportCmd represents the profile import command
type ProfileImportCmd struct {
	File string `arg:"" type:"existingfile" help:"YAML file with one profile per document"`
}

// ProfileShowCmd represents the profile show command
type ProfileShowCmd struct {
	ID   string `arg:"" help:"Profile id"`
	JSON bool   `help:"Print the profile as JSON"`
}

// ProfileListCmd represents the profile list command
type ProfileListCmd struct{}

// ProfileDeleteCmd represents the profile delete command
type ProfileDeleteCmd struct {
	ID string `arg:"" help:"Profile id"`
}

func openProfileStore() (*config.Config, *profile.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store := profile.NewSQLiteStore(cfg.ProfileDBFile)
	if err := store.Connect(); err != nil {
		return nil, nil, fmt.Errorf("opening profile store: %w", err)
	}
	return cfg, store, nil
}

func (p *ProfileImportCmd) Run(rc *runContext) error {
	cfg, store, err := openProfileStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	defaults := profile.Defaults{
		PriceCeiling: cfg.PriceCeilingDefault,
		Formats:      cfg.FormatsDefault,
		Currency:     cfg.CurrencyDefault,
	}
	profiles, err := profile.LoadYAMLFile(p.File, defaults)
	if err != nil {
		return err
	}

	for _, prof := range profiles {
		if err := store.Save(rc.ctx, prof); err != nil {
			return fmt.Errorf("saving profile %q: %w", prof.ID, err)
		}
		_, _ = fmt.Fprintf(rc.out, "Imported profile %s\n", prof.ID)
	}
	return nil
}

func (p *ProfileShowCmd) Run(rc *runContext) error {
	_, store, err := openProfileStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	prof, err := store.Get(rc.ctx, p.ID)
	if err != nil {
		return err
	}
	if p.JSON {
		return writeJSONOutput(rc, prof)
	}
	_, err = fmt.Fprint(rc.out, renderProfile(*prof))
	return err
}

func (p *ProfileListCmd) Run(rc *runContext) error {
	_, store, err := openProfileStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	profiles, err := store.List(rc.ctx)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		_, err = fmt.Fprintln(rc.out, "No profiles stored")
		return err
	}
	for _, prof := range profiles {
		if _, err := fmt.Fprint(rc.out, renderProfile(prof)); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProfileDeleteCmd) Run(rc *runContext) error {
	_, store, err := openProfileStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Delete(rc.ctx, p.ID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(rc.out, "Deleted profile %s\n", p.ID)
	return err
}
