package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/champbox/internal/assets"
	"github.com/desertthunder/champbox/internal/flow"
	"github.com/desertthunder/champbox/internal/repositories"
	"github.com/desertthunder/champbox/internal/server"
	"github.com/desertthunder/champbox/internal/services"
	"github.com/desertthunder/champbox/internal/shared"
	"github.com/desertthunder/champbox/internal/tasks"
	"github.com/desertthunder/champbox/internal/ui"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 64

// Serve starts the web service and blocks until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		config.Server.Port = cmd.Int("port")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := shared.SetLogLevel(r.logger, config.Server.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", err, config.Server.LogLevel)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress chan tasks.StageUpdate
	if !cmd.Bool("quiet") {
		progress = make(chan tasks.StageUpdate, progressBuffer)
		go r.printProgress(ctx, progress)
	}

	handler, cleanup, err := r.newHandler(config, progress)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := config.Server.Addr()
	r.writePlain("%s\n\n", ui.Banner(addr, modeName(config.Flow.Mode), config.Dropbox.RedirectURI))

	if cmd.Bool("open") {
		target := "http://" + addr + "/"
		if champion := cmd.String("champion"); champion != "" {
			target += "?championName=" + url.QueryEscape(champion)
		}
		if err := shared.OpenBrowser(target); err != nil {
			r.logger.Warn("failed to open browser", "url", target, "error", err)
		}
	}

	return server.NewServer(addr, handler, r.logger).ListenAndServe(ctx)
}

// newHandler wires services, the pipeline and run history into the HTTP router.
//
// The returned cleanup closes the database.
func (r *Runner) newHandler(config *shared.Config, progress chan<- tasks.StageUpdate) (http.Handler, func(), error) {
	client := r.client(config)
	dropbox, err := services.NewDropboxService(config.Dropbox, client)
	if err != nil {
		return nil, nil, err
	}
	ddragon := services.NewDDragonService(config.DDragon.Host, config.DDragon.Version, client)

	callback, err := server.CallbackPath(config.Dropbox.RedirectURI)
	if err != nil {
		return nil, nil, err
	}

	coordinator, err := flow.New(config.Flow.Mode, config.Flow.PendingTTL)
	if err != nil {
		return nil, nil, err
	}

	store, err := assets.NewStore(config.Storage.Dir)
	if err != nil {
		return nil, nil, err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, nil, err
	}
	runs := repositories.NewRunRepository(db)

	pipeline, err := tasks.NewPipeline(tasks.PipelineOpts{
		Source:            ddragon,
		Storage:           dropbox,
		Assets:            store,
		Coordinator:       coordinator,
		Recorder:          runs,
		Logger:            shared.WithLogger(r.logger, "component", "pipeline"),
		Progress:          progress,
		RemoveAfterUpload: config.Storage.RemoveAfterUpload,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	router := server.NewBasicRouter()
	router.Use(
		server.Recover(r.logger),
		server.Logging(r.logger),
		server.RateLimit(config.Server.RateLimit, config.Server.Burst),
	)
	router.Handler(server.NewFlowHandler(pipeline, r.logger, callback))
	router.Handler(server.NewRunsHandler(runs, r.logger))

	return router, func() { db.Close() }, nil
}

func (r *Runner) printProgress(ctx context.Context, progress <-chan tasks.StageUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-progress:
			r.writePlain("%s\n", ui.StageLine(update))
		}
	}
}

func modeName(mode string) string {
	if mode == "" {
		return flow.ModeKeyed
	}
	return mode
}
