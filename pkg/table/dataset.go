package table

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"
)

const defaultDatasetBaseURL = "https://d2r7gabxtstf5s.cloudfront.net/ex_datasets"

// Dataset describes one hosted demo dataset from the Chicago metro
// healthcare study.
type Dataset struct {
	Name        string
	Filename    string
	Description string
}

var hostedDatasets = map[string]Dataset{
	"chi_times": {
		Name:        "chi_times",
		Filename:    "chicago_metro_times.csv.bz2",
		Description: "cost matrix with travel times from each Chicago census tract to all others",
	},
	"chi_doc": {
		Name:        "chi_doc",
		Filename:    "chicago_metro_docs_dentists.csv",
		Description: "doctor and dentist counts for each Chicago census tract",
	},
	"chi_pop": {
		Name:        "chi_pop",
		Filename:    "chicago_metro_pop.csv",
		Description: "population counts for each Chicago census tract",
	},
	"chi_euclidean": {
		Name:        "chi_euclidean",
		Filename:    "chicago_metro_euclidean_costs.csv.bz2",
		Description: "euclidean distance cost matrix from each demand census tract to all others",
	},
	"chi_euclidean_neighbors": {
		Name:        "chi_euclidean_neighbors",
		Filename:    "chicago_metro_euclidean_cost_neighbors.csv.bz2",
		Description: "euclidean distance cost matrix from each supply census tract to all others",
	},
	"cook_county_hospitals": {
		Name:        "cook_county_hospitals",
		Filename:    "cook_county_hospitals.csv",
		Description: "hospital locations in Cook County including x/y coordinates",
	},
}

// AvailableDatasets lists the hosted demo datasets sorted by name.
func AvailableDatasets() []Dataset {
	out := make([]Dataset, 0, len(hostedDatasets))
	for _, d := range hostedDatasets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Fetcher downloads hosted datasets into a local cache directory. A file
// already present in the cache is reused without touching the network.
type Fetcher struct {
	baseURL string
	dataDir string
	client  *http.Client
	log     *zap.Logger
}

func NewFetcher(dataDir string, log *zap.Logger) *Fetcher {
	return &Fetcher{
		baseURL: defaultDatasetBaseURL,
		dataDir: dataDir,
		client:  &http.Client{Timeout: 5 * time.Minute},
		log:     log,
	}
}

func (f *Fetcher) SetBaseURL(baseURL string) {
	f.baseURL = baseURL
}

// Fetch returns the local path of the named dataset, downloading it on the
// first request.
func (f *Fetcher) Fetch(ctx context.Context, name string) (string, error) {
	ds, ok := hostedDatasets[name]
	if !ok {
		return "", util.WrapErrorf(nil, util.ErrConfiguration,
			"unknown dataset %q", name)
	}

	path := filepath.Join(f.dataDir, ds.Filename)
	if _, err := os.Stat(path); err == nil {
		f.log.Debug("dataset already cached", zap.String("dataset", name),
			zap.String("path", path))
		return path, nil
	}

	if err := os.MkdirAll(f.dataDir, 0o755); err != nil {
		return "", util.WrapErrorf(err, util.ErrInternalServerError,
			"creating dataset cache dir %s", f.dataDir)
	}

	url := fmt.Sprintf("%s/%s", f.baseURL, ds.Filename)
	f.log.Info("downloading dataset", zap.String("dataset", name),
		zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", util.WrapErrorf(err, util.ErrInternalServerError,
			"building request for dataset %s", name)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", util.WrapErrorf(err, util.ErrInternalServerError,
			"downloading dataset %s", name)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", util.WrapErrorf(nil, util.ErrInternalServerError,
			"downloading dataset %s: status %d", name, resp.StatusCode)
	}

	// download into a temp file first so a partial transfer never shows up
	// as a cached dataset.
	tmp, err := os.CreateTemp(f.dataDir, ds.Filename+".part")
	if err != nil {
		return "", util.WrapErrorf(err, util.ErrInternalServerError,
			"creating temp file for dataset %s", name)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", util.WrapErrorf(err, util.ErrInternalServerError,
			"writing dataset %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", util.WrapErrorf(err, util.ErrInternalServerError,
			"closing dataset file %s", name)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", util.WrapErrorf(err, util.ErrInternalServerError,
			"moving dataset %s into cache", name)
	}

	f.log.Info("dataset downloaded", zap.String("dataset", name),
		zap.String("path", path))
	return path, nil
}
