package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/landmark-labs/sitescan/internal/model"
	"github.com/landmark-labs/sitescan/internal/raster"
	"github.com/landmark-labs/sitescan/internal/resilience"
)

// STACProvider talks to a STAC-style catalog with a band materialization
// endpoint. HTTP failures are classified so the pipeline can decide
// between retrying and aborting: 401/403 become auth errors, 408/429/5xx
// become transient errors.
type STACProvider struct {
	BaseURL    string
	Collection string
	Token      string

	httpClient *http.Client
	log        *zap.Logger
}

func NewSTACProvider(baseURL, collection, token string, httpClient *http.Client) *STACProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &STACProvider{
		BaseURL:    baseURL,
		Collection: collection,
		Token:      token,
		httpClient: httpClient,
		log:        zap.L().With(zap.String("component", "provider.stac")),
	}
}

func (p *STACProvider) Name() string { return "stac" }

type stacSearchRequest struct {
	Collections []string   `json:"collections"`
	BBox        [4]float64 `json:"bbox"`
	Datetime    string     `json:"datetime"`
	MaxCloud    int        `json:"max_cloud_cover"`
	Limit       int        `json:"limit"`
}

type stacFeature struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Properties struct {
		Datetime   time.Time `json:"datetime"`
		CloudCover float64   `json:"eo:cloud_cover"`
		GSD        float64   `json:"gsd"`
	} `json:"properties"`
}

// Search queries the catalog. A well-formed response with zero features is
// a successful empty search, not an error.
func (p *STACProvider) Search(ctx context.Context, aoi model.AOI, tr model.TimeRange, maxCloudCover int) ([]SceneDescriptor, error) {
	body, err := json.Marshal(stacSearchRequest{
		Collections: []string{p.Collection},
		BBox:        [4]float64{aoi.MinLon, aoi.MinLat, aoi.MaxLon, aoi.MaxLat},
		Datetime:    fmt.Sprintf("%s/%s", tr.Start.Format(time.RFC3339), tr.End.Format(time.RFC3339)),
		MaxCloud:    maxCloudCover,
		Limit:       100,
	})
	if err != nil {
		return nil, eris.Wrap(err, "stac: marshal search request")
	}

	data, err := p.do(ctx, http.MethodPost, p.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Features []stacFeature `json:"features"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, eris.Wrap(err, "stac: parse search response")
	}

	scenes := make([]SceneDescriptor, 0, len(parsed.Features))
	for _, f := range parsed.Features {
		scenes = append(scenes, SceneDescriptor{
			ID:          f.ID,
			Collection:  f.Collection,
			AcquiredAt:  f.Properties.Datetime,
			CloudCover:  f.Properties.CloudCover,
			ResolutionM: f.Properties.GSD,
		})
	}
	p.log.Info("scene search complete", zap.Int("scenes", len(scenes)))
	return scenes, nil
}

type bandResponse struct {
	Times int       `json:"times"`
	Rows  int       `json:"rows"`
	Cols  int       `json:"cols"`
	Data  []float64 `json:"data"`
}

// FetchBands searches first, then materializes each requested band as a
// time-major stack. The result is tagged: zero scenes yields Empty, any
// band failure yields Failed with the classified error.
func (p *STACProvider) FetchBands(ctx context.Context, bandNames []string, aoi model.AOI, tr model.TimeRange, maxCloudCover int) *FetchResult {
	scenes, err := p.Search(ctx, aoi, tr, maxCloudCover)
	if err != nil {
		return Failed(err)
	}
	if len(scenes) == 0 {
		return Empty()
	}
	if len(bandNames) == 0 {
		bandNames = DefaultBands
	}

	bands := make(map[string]*raster.Cube, len(bandNames))
	for _, name := range bandNames {
		cube, err := p.fetchBand(ctx, name, aoi, tr)
		if err != nil {
			return Failed(eris.Wrapf(err, "stac: fetch band %s", name))
		}
		bands[name] = cube
	}
	return Ok(bands, scenes)
}

func (p *STACProvider) fetchBand(ctx context.Context, band string, aoi model.AOI, tr model.TimeRange) (*raster.Cube, error) {
	url := fmt.Sprintf("%s/bands/%s?bbox=%f,%f,%f,%f&start=%s&end=%s",
		p.BaseURL, band,
		aoi.MinLon, aoi.MinLat, aoi.MaxLon, aoi.MaxLat,
		tr.Start.Format(time.RFC3339), tr.End.Format(time.RFC3339))

	data, err := p.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var parsed bandResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, eris.Wrap(err, "stac: parse band response")
	}
	if len(parsed.Data) != parsed.Times*parsed.Rows*parsed.Cols {
		return nil, eris.Errorf("stac: band %s data length %d does not match shape (%d,%d,%d)",
			band, len(parsed.Data), parsed.Times, parsed.Rows, parsed.Cols)
	}
	return &raster.Cube{Times: parsed.Times, Rows: parsed.Rows, Cols: parsed.Cols, Data: parsed.Data}, nil
}

// do issues one HTTP request and classifies failure statuses.
func (p *STACProvider) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, eris.Wrap(err, "stac: build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "stac: request failed"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "stac: read response"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resilience.IsAuthHTTPStatus(resp.StatusCode):
		return nil, resilience.NewAuthError(eris.Errorf("stac: %s: status %d", url, resp.StatusCode))
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("stac: %s: status %d", url, resp.StatusCode), resp.StatusCode)
	default:
		return nil, eris.Errorf("stac: %s: unexpected status %d", url, resp.StatusCode)
	}
}

var _ Provider = (*STACProvider)(nil)
