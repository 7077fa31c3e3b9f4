package commands

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/openhyve/openhyve/pkg/config"
	"github.com/openhyve/openhyve/pkg/policy"
	"github.com/openhyve/openhyve/pkg/providers"
	"github.com/openhyve/openhyve/pkg/proxmox"
	"github.com/openhyve/openhyve/pkg/runner"
	"github.com/openhyve/openhyve/pkg/stores"
	"github.com/openhyve/openhyve/pkg/telemetry"
)

// app bundles the wired components a reconciliation command needs.
type app struct {
	manifest *config.Manifest
	store    stores.Store
	runner   *runner.Runner
	tel      *telemetry.Telemetry
	policies *policy.Loader
}

// buildApp loads the manifest and wires telemetry, state store, API
// client, policy engine, and runner.
func buildApp(ctx context.Context, maxParallel int) (*app, error) {
	manifest, err := config.NewLoader().Load(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	tel, err := newTelemetry()
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	store, err := openStore(ctx)
	if err != nil {
		tel.Shutdown(ctx)
		return nil, err
	}

	client, err := newAPIClient(manifest, tel)
	if err != nil {
		store.Close()
		tel.Shutdown(ctx)
		return nil, err
	}

	a := &app{manifest: manifest, store: store, tel: tel}

	var pol *policy.Engine
	if manifest.Policies.IsEnabled() {
		pol, err = newPolicyEngine(ctx, a, manifest)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	r, err := runner.New(runner.Options{
		Manifest:     manifest,
		ManifestPath: manifestPath,
		Store:        store,
		Client:       client,
		Registry:     providers.NewDefaultRegistry(),
		Policy:       pol,
		Telemetry:    tel,
		MaxParallel:  maxParallel,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("creating runner: %w", err)
	}
	a.runner = r

	return a, nil
}

// Close releases everything buildApp wired, in reverse order.
func (a *app) Close(ctx context.Context) {
	if a.policies != nil {
		a.policies.StopWatching()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.tel != nil {
		a.tel.Shutdown(ctx)
	}
}

func newTelemetry() (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "hyve"
	cfg.Logging.Format = "console"
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		// Keep stdout clean for the command's JSON result.
		cfg.Logging.Format = "json"
		cfg.Logging.Output = "stderr"
	}
	return telemetry.NewTelemetry(cfg)
}

func openStore(ctx context.Context) (stores.Store, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: statePath})
	if err != nil {
		return nil, fmt.Errorf("creating state store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating state store: %w", err)
	}
	return store, nil
}

func newAPIClient(manifest *config.Manifest, tel *telemetry.Telemetry) (*proxmox.Client, error) {
	token, err := manifest.Auth.APIToken()
	if err != nil {
		return nil, err
	}

	opts := []proxmox.Option{proxmox.WithLogger(tel.Logger.Zerolog())}
	if manifest.Auth.InsecureSkipVerify {
		opts = append(opts, proxmox.WithHTTPClient(&http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}))
	}
	return proxmox.NewClient(manifest.Endpoint, token, opts...), nil
}

func newPolicyEngine(ctx context.Context, a *app, manifest *config.Manifest) (*policy.Engine, error) {
	logger := a.tel.Logger.NewComponentLogger("policy").Zerolog()
	pol, err := policy.NewEngine(logger)
	if err != nil {
		return nil, fmt.Errorf("creating policy engine: %w", err)
	}

	paths := manifest.Policies.Paths
	if len(paths) > 0 {
		if err := pol.LoadPolicies(ctx, paths); err != nil {
			return nil, fmt.Errorf("loading policies: %w", err)
		}
		if manifest.Policies.Watch {
			loader := policy.NewLoader(logger)
			if err := loader.Watch(ctx, paths, func(policies []policy.Policy) error {
				return pol.ReplacePolicies(ctx, policies)
			}); err != nil {
				return nil, fmt.Errorf("watching policy paths: %w", err)
			}
			a.policies = loader
		}
	}
	return pol, nil
}
