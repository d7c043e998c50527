// Package groundtruth loads known reference sites from geographic and
// tabular formats, locally or over HTTP/FTP.
package groundtruth

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/landmark-labs/sitescan/internal/model"
)

// Loader resolves a path or URL to a reference site list. Format is chosen
// by file extension: .geojson/.json, .shp, .csv, .xlsx.
type Loader struct {
	httpClient *http.Client
	ftpTimeout time.Duration
	log        *zap.Logger
}

func NewLoader(httpClient *http.Client) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Loader{
		httpClient: httpClient,
		ftpTimeout: 30 * time.Second,
		log:        zap.L().With(zap.String("component", "groundtruth")),
	}
}

// Load reads reference sites from source, downloading it first when it is
// an http(s) or ftp URL.
func (l *Loader) Load(ctx context.Context, source string) ([]model.GroundTruthSite, error) {
	path := source
	if isRemote(source) {
		local, cleanup, err := l.download(ctx, source)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = local
	}

	var sites []model.GroundTruthSite
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		sites, err = LoadGeoJSON(path)
	case ".shp":
		sites, err = LoadShapefile(path)
	case ".csv":
		sites, err = LoadCSV(path)
	case ".xlsx":
		sites, err = LoadXLSX(path)
	default:
		return nil, eris.Errorf("groundtruth: unsupported format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	l.log.Info("loaded reference sites", zap.String("source", source), zap.Int("sites", len(sites)))
	return sites, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "ftp://")
}

// download fetches a remote source into a temp file carrying the same
// extension so the format dispatch still works.
func (l *Loader) download(ctx context.Context, source string) (string, func(), error) {
	var body io.ReadCloser
	var err error
	if strings.HasPrefix(source, "ftp://") {
		body, err = l.openFTP(ctx, source)
	} else {
		body, err = l.openHTTP(ctx, source)
	}
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp("", "groundtruth-*"+filepath.Ext(source))
	if err != nil {
		return "", nil, eris.Wrap(err, "groundtruth: create temp file")
	}
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, eris.Wrap(err, "groundtruth: download source")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, eris.Wrap(err, "groundtruth: close temp file")
	}
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}

func (l *Loader) openHTTP(ctx context.Context, source string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: build request")
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: fetch source")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("groundtruth: fetch %s: status %d", source, resp.StatusCode)
	}
	return resp.Body, nil
}

func (l *Loader) openFTP(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: parse ftp url")
	}
	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":21"
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(l.ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: ftp dial")
	}
	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "groundtruth: ftp login")
	}
	resp, err := conn.Retr(u.Path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "groundtruth: ftp retrieve")
	}
	return &ftpReadCloser{resp: resp, conn: conn}, nil
}

// ftpReadCloser ties the FTP data connection's lifetime to the reader.
type ftpReadCloser struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReadCloser) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpReadCloser) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "groundtruth: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "groundtruth: quit ftp connection")
	}
	return nil
}
