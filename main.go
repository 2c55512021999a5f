package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
)

const missingCredentialsHelp = `Missing CLIENT_ACCESS_KEY or CLIENT_SECRET_ACCESS_KEY. Please update ~/.dlaas/config.yaml with a access key generated from https://datalayer.storage. The steps are as follows:
1) Create an account.
2) Aquire an active subscription.
3) Generate a new Access Key and Secret with the app at https://datalayer.storage.
4) copy the access key and secret into ~/.dlaas/config.yaml`

func main() {
	configFilePath := flag.String("configfile", "", "Configuration File Path")
	flag.Parse()

	path := *configFilePath
	if path == "" {
		path = DefaultConfigFilePath()
	}
	appConfig := LoadConfig(path)

	log.Info("Loaded config:")
	log.Info(strings.Join(appConfig.ConfigStringArray(), "\n"))

	if !appConfig.HasCredentials() {
		fmt.Fprintln(os.Stderr, missingCredentialsHelp)
		os.Exit(1)
	}

	semaphore = make(chan int, appConfig.Concurrency)

	uploader := NewUploader(appConfig)
	server := NewPluginServer(uploader)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconciler, reconcilerErr := NewReconciler(appConfig)
	if reconcilerErr != nil {
		log.Error(fmt.Sprintf("Reconciliation disabled: %s", reconcilerErr))
	} else {
		go reconciler.Run(ctx)

		if appConfig.ReconcileIntervalMinutes > 0 {
			scheduler := gocron.NewScheduler(time.UTC)
			scheduler.Every(appConfig.ReconcileIntervalMinutes).Minutes().Do(func() {
				reconciler.Run(ctx)
			})
			scheduler.StartAsync()
		}
	}

	go func() {
		<-ctx.Done()
		if stopErr := server.Stop(); stopErr != nil {
			log.Warn(fmt.Sprintf("Error shutting down server: %s", stopErr))
		}
	}()

	log.Info(fmt.Sprintf("Server running on port %d", appConfig.Port))
	serveErr := server.Start(fmt.Sprintf(":%d", appConfig.Port))
	if serveErr != nil && serveErr != http.ErrServerClosed {
		panic(fmt.Errorf("Server error: %s\n", serveErr))
	}
}
