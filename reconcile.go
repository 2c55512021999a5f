package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	reconcileRetryDelay = 300 * time.Second
	reconcileTimeout    = 300 * time.Second
)

// Reconciler asks the local datalayer to re-enumerate and push whatever
// files remote storage is missing. The datalayer calls back into the plugin
// server with the actual upload work, so a successful POST is the end of
// this client's job.
type Reconciler struct {
	RPCHost    string
	RPCPort    int
	Client     *http.Client
	RetryDelay time.Duration
}

func NewReconciler(appConfig AppConfig) (*Reconciler, error) {
	cert, certErr := tls.LoadX509KeyPair(appConfig.CertFilePath(), appConfig.KeyFilePath())
	if certErr != nil {
		return nil, fmt.Errorf("Error loading datalayer client certificate: %w", certErr)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			// The local datalayer serves a self-signed pair on the same
			// host. This applies to the RPC client only.
			InsecureSkipVerify: true,
		},
	}

	return &Reconciler{
		RPCHost:    appConfig.RPCHost,
		RPCPort:    appConfig.RPCDatalayerPort,
		Client:     &http.Client{Transport: transport, Timeout: reconcileTimeout},
		RetryDelay: reconcileRetryDelay,
	}, nil
}

// Run posts the add_missing_files request once. Connection refused means
// the datalayer is not up yet, so wait and try again with no attempt cap;
// any other failure is logged and dropped. ctx stops the refusal loop on
// shutdown.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		body, rpcErr := r.addMissingFiles(ctx)
		if rpcErr == nil {
			log.Info(fmt.Sprintf("add_missing_files response: %s", body))
			return
		}

		if !errors.Is(rpcErr, syscall.ECONNREFUSED) {
			log.Error(fmt.Sprintf("Error: %s", rpcErr))
			return
		}

		log.Error(fmt.Sprintf(
			"Connection refused. Please make sure the local datalayer is running on port: %d. Trying again in 5 min",
			r.RPCPort,
		))

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.RetryDelay):
		}
	}
}

func (r *Reconciler) addMissingFiles(ctx context.Context) (string, error) {
	rpcURL := fmt.Sprintf("https://%s:%d/add_missing_files", r.RPCHost, r.RPCPort)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, rpcURL, strings.NewReader("{}"))
	if reqErr != nil {
		return "", reqErr
	}
	req.Header.Set("Content-Type", "application/json")

	resp, postErr := r.Client.Do(req)
	if postErr != nil {
		return "", postErr
	}
	defer resp.Body.Close()

	body, readErr := ioutil.ReadAll(resp.Body)
	if readErr != nil {
		return "", readErr
	}

	return string(body), nil
}
