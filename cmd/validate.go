package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/champbox/internal/services"
	"github.com/desertthunder/champbox/internal/shared"
	"github.com/desertthunder/champbox/internal/ui"
	"github.com/urfave/cli/v3"
)

type validateResult struct {
	Champion string `json:"champion"`
	Valid    bool   `json:"valid"`
	URL      string `json:"url"`
	Image    string `json:"image,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Validate checks a champion name against Data Dragon.
//
// An unknown champion is reported, not returned as an error; transport failures are returned.
func (r *Runner) Validate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: champion name", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	ddragon := services.NewDDragonService(config.DDragon.Host, config.DDragon.Version, r.client(config))
	result := validateResult{Champion: name, URL: ddragon.ChampionURL(name)}

	err = ddragon.ValidateChampion(ctx, name)
	switch {
	case err == nil:
		result.Valid = true
		result.Image = ddragon.ImageURL(name)
	case errors.Is(err, shared.ErrValidationFailed):
		result.Error = err.Error()
	default:
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	if result.Valid {
		return r.writePlain("%s\n%s\n", ui.OK(name+" is a valid champion"), ui.Help(result.Image))
	}
	return r.writePlain("%s\n%s\n", ui.Err(name+" was not found"), ui.Help(result.URL))
}

// AuthURL prints the Dropbox authorize URL for the configured app.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	dropbox, err := services.NewDropboxService(config.Dropbox, r.client(config))
	if err != nil {
		return err
	}

	state := ""
	if cmd.Bool("state") {
		state = shared.GenerateID()
	}

	return r.writePlain("%s\n", dropbox.AuthCodeURL(state))
}
