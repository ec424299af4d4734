package start

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/pixzlo/bridge/api"
	"github.com/pixzlo/bridge/env"
	"github.com/pixzlo/bridge/internal/backend"
	"github.com/pixzlo/bridge/internal/event"
	"github.com/pixzlo/bridge/internal/figma"
	"github.com/pixzlo/bridge/internal/figmaapi"
	"github.com/pixzlo/bridge/internal/linear"
	"github.com/pixzlo/bridge/internal/metrics"
	"github.com/pixzlo/bridge/internal/router"
	"github.com/pixzlo/bridge/internal/store"
	"github.com/pixzlo/bridge/internal/workspace"
	"github.com/pixzlo/bridge/pkg/log"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

const (
	usage   = "start"
	short   = "Start the Pixzlo bridge daemon"
	long    = "This command starts the Pixzlo bridge daemon"
	example = "pixzlo-bridge start"
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"launch", "boot", "up", "run", "begin"},
		Example:    example,
		RunE:       start,
	}
)

var (
	cancel context.CancelFunc
	server *api.API
)

func start(cmd *cobra.Command, args []string) error {
	signalChan := make(chan os.Signal, 1)

	go func() {
		for s := range signalChan {
			switch s {
			case syscall.SIGUSR1:
				log.Info("dumping stack traces due to SIGUSR1 signal")
				if profile := pprof.Lookup("goroutine"); profile != nil {
					if err := profile.WriteTo(os.Stdout, 1); err != nil {
						log.Error("write goroutine profile", "error", err)
					}
				}
			case syscall.SIGINT, syscall.SIGTERM:
				log.Info("gracefully shutting down", "signal", s.String())
				shutdown()
				os.Exit(0)
			}
		}
	}()

	signal.Notify(signalChan, syscall.SIGUSR1, syscall.SIGINT, syscall.SIGTERM)

	var errs = make(chan error)
	ctx, cancelFunc := context.WithCancel(context.Background())
	cancel = cancelFunc

	vars := env.Variables()
	bus := event.New()

	log.Info("opening settings store", "path", vars.DBPath)
	settings, err := store.Open(vars.DBPath, bus)
	if err != nil {
		log.Fatal("settings store failure", "error", err)
	}

	backendClient := backend.New(backend.Config{
		BaseURL:       vars.BackendURL,
		SessionCookie: vars.SessionCookie,
		Timeout:       vars.HTTPTimeout,
	})
	figmaClient := figmaapi.New(vars.FigmaAPIURL, vars.HTTPTimeout)

	resolver := workspace.New(settings, backendClient, vars.ProfileTTL)
	figmaSvc := figma.New(backendClient, figmaClient, resolver, bus, figma.Config{
		MetadataTTL: vars.MetadataTTL,
		RenderTTL:   vars.RenderTTL,
	})
	linearSvc := linear.New(backendClient, resolver, bus, vars.MetadataTTL)

	r := router.New(router.Services{
		Figma:     figmaSvc,
		Linear:    linearSvc,
		Workspace: resolver,
		Backend:   backendClient,
	})

	metrics.Register()

	go invalidateOnWorkspaceChange(ctx, bus, resolver, figmaSvc, linearSvc)

	sweeper := cron.New()
	if err := sweeper.AddFunc(
		fmt.Sprintf("@every %v", vars.CacheSweepInterval),
		func() {
			figmaSvc.Sweep()
			linearSvc.Sweep()
		},
	); err != nil {
		log.Fatal("cache sweep configuration failure", "error", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	server = api.New(r, bus)

	go func() {
		log.Info("spinning up api", "port", vars.Port)
		errs <- server.Start()
	}()

	defer shutdown()

	return <-errs
}

// invalidateOnWorkspaceChange drops workspace-scoped caches whenever
// the persisted selection changes, so the next read refetches under
// the new workspace.
func invalidateOnWorkspaceChange(
	ctx context.Context,
	bus event.Bus,
	resolver *workspace.Resolver,
	figmaSvc *figma.Service,
	linearSvc *linear.Service,
) {
	ch, err := bus.Subscribe(ctx, event.Filter{
		Types: []event.Type{event.TypeWorkspaceChanged},
	})
	if err != nil {
		log.Error("workspace change subscription failure", "error", err)
		return
	}

	for e := range ch {
		log.Info("workspace changed, invalidating caches", "workspace_id", e.WorkspaceID)
		resolver.InvalidateProfile()
		figmaSvc.InvalidateWorkspace()
		linearSvc.InvalidateWorkspace()
	}
}

func shutdown() {
	if cancel != nil {
		cancel()
	}
	if server != nil {
		ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("api shutdown failure", "error", err)
		}
	}
}
