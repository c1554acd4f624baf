package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/pkg/logger"
)

// HTTPClient wraps http.Client with actor identification.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	secret  []byte
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration, secret string) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		secret:  []byte(secret),
	}
}

// apiError is the error body of a non-2xx response.
type apiError struct {
	Status  int      `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// authorize identifies actor on req.
func (c *HTTPClient) authorize(req *http.Request, actor string) error {
	if actor == "" {
		return nil
	}
	if len(c.secret) == 0 {
		req.Header.Set(api.ActorHeader, actor)
		return nil
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  actor,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}).SignedString(c.secret)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Do sends a JSON request as actor and decodes a 2xx body into out.
// Non-2xx responses are returned as *apiError.
func (c *HTTPClient) Do(ctx context.Context, method, path, actor string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req, actor); err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// statusOf returns the HTTP status of err, or 0 for transport failures.
func statusOf(err error) int {
	if e, ok := err.(*apiError); ok { //nolint:errorlint // Do returns apiError unwrapped
		return e.Status
	}
	return 0
}

// scoresRequest mirrors the score batch body.
type scoresRequest struct {
	BatchID string `json:"batchId"`
	Scores  any    `json:"scores"`
}

// submitResult mirrors the score batch response.
type submitResult struct {
	QuorumReached  bool `json:"quorumReached"`
	EvaluatorCount int  `json:"evaluatorCount"`
	Duplicate      bool `json:"duplicate"`
}

// submitJobs scans and scores every job using a worker pool.
func submitJobs(ctx context.Context, config *Config, client *HTTPClient, jobs []job, stats *Stats) {
	logger.Get().Info(ctx, "submitting score batches",
		logger.Int("jobs", len(jobs)), logger.Int("workers", config.Workers))

	var scans, submitted, accepted, rejected, failed, quorums int64

	jobChan := make(chan job, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				if ctx.Err() != nil {
					return
				}
				if err := recordScan(ctx, client, j); err == nil {
					atomic.AddInt64(&scans, 1)
				}

				atomic.AddInt64(&submitted, 1)
				res, err := submitSingleJob(ctx, client, j)
				switch {
				case err == nil:
					atomic.AddInt64(&accepted, 1)
					if res.QuorumReached && !res.Duplicate {
						atomic.AddInt64(&quorums, 1)
					}
				case statusOf(err) >= http.StatusBadRequest && statusOf(err) < http.StatusInternalServerError:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if config.Verbose {
					logger.Get().Debug(ctx, "score batch",
						logger.String("evaluator", j.EvaluatorID),
						logger.String("team", j.TeamID),
						logger.String("stage", j.StageID),
						logger.Any("error", err))
				}
			}
		}()
	}

	go func() {
		defer close(jobChan)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobChan <- j:
			}
		}
	}()

	wg.Wait()

	stats.ScansRecorded = int(atomic.LoadInt64(&scans))
	stats.BatchesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.BatchesAccepted = int(atomic.LoadInt64(&accepted))
	stats.BatchesRejected = int(atomic.LoadInt64(&rejected))
	stats.BatchesFailed = int(atomic.LoadInt64(&failed))
	stats.QuorumsReached = int(atomic.LoadInt64(&quorums))

	logger.Get().Info(ctx, "score submission completed",
		logger.Int("accepted", stats.BatchesAccepted),
		logger.Int("rejected", stats.BatchesRejected),
		logger.Int("failed", stats.BatchesFailed),
		logger.Int("quorums", stats.QuorumsReached))
}

func recordScan(ctx context.Context, client *HTTPClient, j job) error { //nolint:gocritic // hugeParam: channel element
	path := "/stages/" + j.StageID + "/teams/" + j.TeamID + "/scan"
	return client.Do(ctx, http.MethodPost, path, j.EvaluatorID, nil, nil)
}

func submitSingleJob(ctx context.Context, client *HTTPClient, j job) (submitResult, error) { //nolint:gocritic // hugeParam: channel element
	var res submitResult
	path := "/stages/" + j.StageID + "/teams/" + j.TeamID + "/scores"
	err := client.Do(ctx, http.MethodPost, path, j.EvaluatorID, scoresRequest{BatchID: j.BatchID, Scores: j.Scores}, &res)
	return res, err
}
