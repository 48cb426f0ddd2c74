package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"linkfetch/backend"
	"linkfetch/internal"
	"linkfetch/remote"
	"linkfetch/session"
)

// openSession builds the backend for link, wraps it in a session and opens
// the link
func openSession(ctx context.Context, link string) (*session.Session, remote.Node, error) {
	engine, info, err := backend.Open(ctx, link, config)
	if err != nil {
		return nil, nil, err
	}
	internal.LogDebug("Using %s backend for %s link", info.Scheme, info.Kind)

	sess := session.New(engine, session.Options{
		RequestTimeout: config.RequestTimeout,
		Backoff:        session.NewBackoff(config.RefreshInterval, config.BackoffCeiling),
		Logger:         internal.GetLogger(),
	})

	node, err := sess.Open(ctx, link)
	if err != nil {
		sess.Quit()
		return nil, nil, err
	}
	return sess, node, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. onSignal runs first.
func signalContext(onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			internal.LogInfo("Received signal %v, initiating graceful shutdown...", sig)
			if onSignal != nil {
				onSignal(sig)
			}
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func printf(format string, args ...interface{}) {
	if !config.QuietMode {
		fmt.Printf(format, args...)
	}
}
