package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/artifact"
	"github.com/grupomas/invoice-cli/internal/batch"
	"github.com/grupomas/invoice-cli/internal/browser"
	"github.com/grupomas/invoice-cli/internal/export"
	"github.com/grupomas/invoice-cli/internal/portal"
	"github.com/grupomas/invoice-cli/internal/reconcile"
	anthropicpkg "github.com/grupomas/invoice-cli/pkg/anthropic"
)

// pipelineEnv holds the artifact store and the orchestrator shared by the
// extract and serve commands.
type pipelineEnv struct {
	Store        *artifact.Store
	Orchestrator *batch.Orchestrator
}

// initPipeline prepares the on-disk layout and wires the pipeline stages.
// The browser engine itself is only launched when a batch authenticates.
func initPipeline(_ context.Context) (*pipelineEnv, error) {
	if cfg.Portal.Username == "" || cfg.Portal.Password == "" {
		return nil, eris.New("portal credentials not configured (INVOICE_PORTAL_USERNAME / INVOICE_PORTAL_PASSWORD)")
	}
	if cfg.Portal.LoginURL == "" || cfg.Portal.SearchURL == "" {
		return nil, eris.New("portal urls not configured")
	}

	store := artifact.NewStore(cfg.Storage.DownloadRoot)
	if err := store.EnsureLayout(); err != nil {
		return nil, err
	}

	// Downloads land here under browser-assigned names before the
	// correlator moves them to their deterministic artifact path.
	scratch := filepath.Join(cfg.Storage.DownloadRoot, ".scratch")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, eris.Wrap(err, "create download scratch directory")
	}

	factory := func(ctx context.Context) (browser.Engine, error) {
		return browser.NewChromeEngine(ctx, browser.ChromeOptions{
			Headless:         cfg.Browser.Headless,
			UserAgent:        cfg.Browser.UserAgent,
			DownloadDir:      scratch,
			ActionsPerSecond: cfg.Browser.ActionsPerSecond,
		})
	}

	manager := portal.NewManager(cfg, factory)
	searcher := portal.NewSearcher(cfg)
	correlator := portal.NewCorrelator(store, cfg.Timeouts.Download())
	extractor := portal.NewExtractor(cfg, correlator)

	var docExtractor reconcile.Extractor
	if cfg.Anthropic.Key != "" {
		docExtractor = reconcile.NewDocumentExtractor(
			anthropicpkg.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens,
		)
	} else {
		zap.L().Warn("INVOICE_ANTHROPIC_KEY not set, document extraction disabled")
	}
	reconciler := reconcile.NewReconciler(store, docExtractor)

	orchestrator := batch.NewOrchestrator(
		func(ctx context.Context) (batch.Session, error) {
			return manager.Authenticate(ctx)
		},
		searcher,
		extractor,
		reconciler,
		func(runID string) batch.Exporter {
			return export.NewWriter(cfg.Storage.ExportRoot, runID)
		},
	)

	return &pipelineEnv{
		Store:        store,
		Orchestrator: orchestrator,
	}, nil
}
