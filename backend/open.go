package backend

import (
	"context"

	"linkfetch/internal"
	"linkfetch/utils"
)

// Open picks the store for link and wraps it in an Engine configured from cfg
func Open(ctx context.Context, link string, cfg *internal.Config) (*Engine, *internal.LinkInfo, error) {
	info, err := utils.NewLinkParser().Parse(link)
	if err != nil {
		return nil, nil, err
	}

	rate, err := utils.ParseRateLimit(cfg.RateLimit)
	if err != nil {
		return nil, nil, internal.NewValidationErrorWithValue("rate_limit", err.Error(), cfg.RateLimit)
	}

	var store Store
	switch info.Scheme {
	case "file":
		store = NewLocalStore()
	case "s3":
		httpClient, err := utils.NewHTTPClient(&utils.HTTPClientConfig{ProxyURL: cfg.ProxyURL})
		if err != nil {
			return nil, nil, err
		}
		s3Store, err := NewS3Store(ctx, info.Bucket, S3Config{
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			PathStyle:  cfg.S3PathStyle,
			ExportTTL:  cfg.ExportTTL,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, nil, internal.NewUnsupportedLinkError(link, err.Error())
		}
		store = s3Store
	default:
		return nil, nil, internal.NewUnsupportedLinkError(link, "no backend for scheme "+info.Scheme)
	}

	engine := New(store, Options{
		MaxTransfers: cfg.MaxTransfers,
		MaxRetries:   cfg.MaxRetries,
		RateLimit:    rate,
		RetryCeiling: cfg.BackoffCeiling,
		Logger:       internal.GetLogger().With("backend", info.Scheme),
	})
	return engine, info, nil
}
