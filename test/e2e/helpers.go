//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/podseek/internal/api/handlers"
	"github.com/cloo-solutions/podseek/internal/api/middleware"
	"github.com/cloo-solutions/podseek/internal/cache"
	"github.com/cloo-solutions/podseek/internal/captions"
	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/index"
	"github.com/cloo-solutions/podseek/internal/jobs"
	"github.com/cloo-solutions/podseek/internal/logging"
	"github.com/cloo-solutions/podseek/internal/repository"
	"github.com/cloo-solutions/podseek/internal/server"
	"github.com/cloo-solutions/podseek/internal/service"
	"github.com/cloo-solutions/podseek/internal/storage"
	"github.com/cloo-solutions/podseek/internal/testutil"
)

const adminKey = "e2e-admin-key"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	cancel     context.CancelFunc
	PostgresC  *testutil.PostgresContainer
	ElasticC   *testutil.ElasticsearchContainer
	RustFSC    *testutil.RustFSContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	S3Client   *storage.S3Client
	Index      *index.Client
	Episodes   *repository.EpisodeRepository
	Sync       *jobs.IndexSyncWorker
	HTTPClient *http.Client
}

// SetupE2EEnv starts Postgres, Elasticsearch and RustFS and serves the full router
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx, cancel := context.WithCancel(context.Background())
	log := logging.New("warn", logging.FormatText)

	pgC := testutil.NewPostgresContainer(ctx, t)
	esC := testutil.NewElasticsearchContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "captions",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	indexClient, err := index.New(index.Config{Addresses: []string{esC.URL()}, Index: "episodes"})
	if err != nil {
		t.Fatalf("failed to create index client: %v", err)
	}
	if err := indexClient.EnsureIndex(ctx); err != nil {
		t.Fatalf("failed to create index: %v", err)
	}

	episodes := repository.NewEpisodeRepository(pool)
	resultCache := cache.New(time.Hour)
	fetcher := captions.NewFetcher(nil, s3Client, 5*time.Second)
	searchSvc := service.NewSearchService(indexClient, episodes, fetcher, resultCache, log, service.SearchOptions{})

	listener := jobs.NewSyncListener(jobs.PoolConnector(pool), repository.SyncChannel, resultCache, log)
	go listener.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		Logger:        log,
		AuthValidator: middleware.NewStaticKeyValidator(adminKey),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		AdminHandler:  handlers.NewAdminHandler(searchSvc),
	})

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		cancel:     cancel,
		PostgresC:  pgC,
		ElasticC:   esC,
		RustFSC:    s3C,
		Pool:       pool,
		Server:     httptest.NewServer(router),
		S3Client:   s3Client,
		Index:      indexClient,
		Episodes:   episodes,
		Sync:       jobs.NewIndexSyncWorker(episodes, indexClient, log.WithField("test", "e2e")),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	e.cancel()
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(context.Background())
	}
	if e.ElasticC != nil {
		e.ElasticC.Terminate(context.Background())
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(context.Background())
	}
}

// Seed stores the episodes, uploads captions for those given and indexes them with a refresh.
// It sends no sync notification.
func (e *E2ETestEnv) Seed(episodes []*domain.Episode, captionDocs map[string]string) {
	for _, ep := range episodes {
		if doc, ok := captionDocs[ep.ID]; ok {
			key := "captions/" + ep.ID + ".vtt"
			if err := e.S3Client.PutObject(e.Ctx, key, "text/vtt", []byte(doc)); err != nil {
				e.T.Fatalf("failed to upload captions: %v", err)
			}
			ep.CaptionURL = e.S3Client.Location(key)
		}
		if err := e.Episodes.Upsert(e.Ctx, ep); err != nil {
			e.T.Fatalf("failed to store episode: %v", err)
		}
		if err := e.Index.Put(e.Ctx, ep, true); err != nil {
			e.T.Fatalf("failed to index episode: %v", err)
		}
	}
}

// SyncIndex runs one index sync pass and makes the result searchable
func (e *E2ETestEnv) SyncIndex() {
	if err := e.Sync.ProcessJobs(e.Ctx); err != nil {
		e.T.Fatalf("index sync failed: %v", err)
	}

	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPost, e.ElasticC.URL()+"/episodes/_refresh", nil)
	if err != nil {
		e.T.Fatalf("failed to build refresh request: %v", err)
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("failed to refresh index: %v", err)
	}
	resp.Body.Close()
}

// APIResponse represents the standard API response format
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Get performs a GET request against the test server
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.do(http.MethodGet, path, "", "")
}

// Post performs a POST request with a raw JSON body
func (e *E2ETestEnv) Post(path, body, token string) (*APIResponse, error) {
	return e.do(http.MethodPost, path, body, token)
}

func (e *E2ETestEnv) do(method, path, body, token string) (*APIResponse, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, reader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (%d): %s", resp.StatusCode, raw)
	}
	apiResp.StatusCode = resp.StatusCode
	return &apiResp, nil
}
