package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ABIClient downloads contract interface descriptions.
type ABIClient interface {
	// FetchABI returns the raw JSON ABI array found at url. The document may be a bare
	// array or an artifact object carrying the array under "abi".
	FetchABI(ctx context.Context, url string) ([]byte, error)
}

type abiClientImpl struct {
	client  *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewABIClient creates an ABIClient backed by fasthttp.
func NewABIClient(timeout time.Duration, logger *zap.Logger) ABIClient {
	return &abiClientImpl{
		client:  &fasthttp.Client{},
		timeout: timeout,
		logger:  logger.Named("ABIClient"),
	}
}

type abiArtifact struct {
	ABI jsoniter.RawMessage `json:"abi"`
}

// FetchABI implements the ABIClient interface.
func (c *abiClientImpl) FetchABI(ctx context.Context, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.logger.Debug("Requesting contract ABI", zap.String("url", url))

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Error("Failed to execute ABI request", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("failed to execute request to %s: %w", url, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("ABI request failed", zap.String("url", url), zap.Int("statusCode", resp.StatusCode()))
		return nil, fmt.Errorf("ABI request to %s failed with status %d", url, resp.StatusCode())
	}

	// resp.Body() is only valid until the response is released.
	body := append([]byte(nil), resp.Body()...)
	return ExtractABI(body)
}

// ExtractABI accepts either a bare ABI array or an artifact with an "abi" field.
func ExtractABI(document []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(document)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty ABI document")
	}
	if trimmed[0] == '[' {
		return trimmed, nil
	}

	var artifact abiArtifact
	if err := json.Unmarshal(trimmed, &artifact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ABI document: %w", err)
	}
	if len(artifact.ABI) == 0 {
		return nil, fmt.Errorf("ABI document has no \"abi\" field")
	}
	return artifact.ABI, nil
}
