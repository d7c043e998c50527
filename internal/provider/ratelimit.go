package provider

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/landmark-labs/sitescan/internal/model"
)

// RateLimited wraps a provider with a token-bucket limiter so batch runs
// do not exceed the upstream catalog's request quota.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited allows rps requests per second with the given burst.
func NewRateLimited(inner Provider, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) Search(ctx context.Context, aoi model.AOI, tr model.TimeRange, maxCloudCover int) ([]SceneDescriptor, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Search(ctx, aoi, tr, maxCloudCover)
}

func (r *RateLimited) FetchBands(ctx context.Context, bandNames []string, aoi model.AOI, tr model.TimeRange, maxCloudCover int) *FetchResult {
	if err := r.limiter.Wait(ctx); err != nil {
		return Failed(err)
	}
	return r.inner.FetchBands(ctx, bandNames, aoi, tr, maxCloudCover)
}

var _ Provider = (*RateLimited)(nil)
