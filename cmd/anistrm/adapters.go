package main

import (
	"context"

	"github.com/alvarorichard/anistrm/internal/browser"
	"github.com/alvarorichard/anistrm/internal/capture"
	"github.com/alvarorichard/anistrm/internal/orchestrator"
)

// proxyStarter and browserOpener narrow the concrete services to the
// orchestrator's interfaces. A failed start returns an untyped nil.
type proxyStarter struct{ svc *capture.Service }

func (p proxyStarter) Start(ctx context.Context) (orchestrator.ProxySession, error) {
	sess, err := p.svc.Start(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

type browserOpener struct{ launcher *browser.Launcher }

func (b browserOpener) Open(ctx context.Context, proxyAddr string) (orchestrator.BrowserSession, error) {
	sess, err := b.launcher.Open(ctx, proxyAddr)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
