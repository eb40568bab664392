package sink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"harvester/internal/config"
	"harvester/internal/credentials"
	"harvester/internal/logger"
	"harvester/internal/models"
	"harvester/internal/platform"
)

// UploadSecret names the optional credential bundle of the http sink.
const UploadSecret = "sink-secret"

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a signing
// secret is configured.
const SignatureHeader = "X-Harvester-Signature"

// Upload defaults.
const (
	DefaultBatchSize   = 500
	DefaultConcurrency = 4
)

// UploadCredentials is the sink-secret bundle.
type UploadCredentials struct {
	APIKey        string `json:"api_key"`
	SigningSecret string `json:"signing_secret"`
}

// UploadOptions configures an UploadSink.
type UploadOptions struct {
	Logger      *logger.Logger
	Endpoint    string
	Credentials UploadCredentials
	Retry       config.RetryPolicy
	BatchSize   int
	Concurrency int
}

// Batch is the body of one upload request.
type Batch struct {
	Table    string          `json:"table"`
	Platform string          `json:"platform"`
	IDField  string          `json:"id_field"`
	Records  []models.Record `json:"records"`
	Index    int             `json:"batch"`
	Total    int             `json:"batches"`
}

// UploadResult counts what one Save sent.
type UploadResult struct {
	Errors   []error
	Batches  int
	Accepted int
}

// UploadSink posts each table to <endpoint>/tables/<name> in batches, a bounded
// number at a time.
type UploadSink struct {
	client      *platform.Client
	log         *logger.Logger
	secret      []byte
	batchSize   int
	concurrency int
}

// NewUploadSink creates the sink.
func NewUploadSink(opts UploadOptions) *UploadSink {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var headers map[string]string
	if opts.Credentials.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + opts.Credentials.APIKey}
	}

	client := platform.NewClient(platform.ClientOptions{
		Logger:   log,
		Headers:  headers,
		Platform: "upload",
		BaseURL:  opts.Endpoint,
		Retry:    opts.Retry,
	})

	var secret []byte
	if opts.Credentials.SigningSecret != "" {
		secret = []byte(opts.Credentials.SigningSecret)
	}

	return &UploadSink{
		client:      client,
		log:         log,
		secret:      secret,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// LoadUploadCredentials reads the optional sink-secret bundle.
func LoadUploadCredentials(ctx context.Context, p credentials.Provider) (UploadCredentials, error) {
	var c UploadCredentials

	if p == nil {
		return c, nil
	}

	data, err := p.Secret(ctx, UploadSecret)
	if errors.Is(err, credentials.ErrSecretNotFound) {
		return c, nil
	}

	if err != nil {
		return c, err
	}

	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("malformed %s: %w", UploadSecret, err)
	}

	return c, nil
}

// Save uploads the table and returns every failed batch joined into one error.
func (s *UploadSink) Save(ctx context.Context, table *models.Table) error {
	if err := checkTableName(table.Name); err != nil {
		return err
	}

	result := s.Upload(ctx, table)

	s.log.Info("table uploaded", "table", table.Name, "batches", result.Batches,
		"accepted", result.Accepted, "failed", len(result.Errors))

	return errors.Join(result.Errors...)
}

// Upload sends every batch of table and reports what happened. An empty table
// is sent as one empty batch so the receiver still learns about the run.
func (s *UploadSink) Upload(ctx context.Context, table *models.Table) *UploadResult {
	batches := chunk(table.Records, s.batchSize)
	result := &UploadResult{Batches: len(batches)}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.concurrency)
	)

	for i, records := range batches {
		wg.Add(1)

		go func(index int, records []models.Record) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			err := s.send(ctx, Batch{
				Table:    table.Name,
				Platform: table.Platform,
				IDField:  table.IDField,
				Records:  records,
				Index:    index,
				Total:    len(batches),
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.log.Error("batch upload failed", "table", table.Name, "batch", index, "error", err)
				result.Errors = append(result.Errors, fmt.Errorf("batch %d: %w", index, err))

				return
			}

			result.Accepted += len(records)
		}(i, records)
	}

	wg.Wait()

	return result
}

func (s *UploadSink) send(ctx context.Context, b Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	var headers map[string]string
	if s.secret != nil {
		headers = map[string]string{SignatureHeader: Sign(s.secret, body)}
	}

	return s.client.PostJSON(ctx, "/tables/"+url.PathEscape(b.Table), body, headers, nil)
}

// Close is a no-op.
func (s *UploadSink) Close() error {
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

func chunk(records []models.Record, size int) [][]models.Record {
	if len(records) == 0 {
		return [][]models.Record{{}}
	}

	var out [][]models.Record

	for start := 0; start < len(records); start += size {
		out = append(out, records[start:min(start+size, len(records))])
	}

	return out
}
