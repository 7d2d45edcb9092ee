// Package meteora is the REST client for the DLMM pair API: pool state,
// position bins, USD prices, and position open/close transaction builds.
package meteora

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// Client talks to the DLMM pair API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new DLMM API client.
//
// baseURL is the API root, e.g. "https://dlmm-api.meteora.ag".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetPair returns the raw pair record for a pool.
func (c *Client) GetPair(ctx context.Context, poolAddress string) (APIPair, error) {
	path := fmt.Sprintf("/pair/%s", url.PathEscape(poolAddress))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return APIPair{}, fmt.Errorf("meteora: get pair %s: %w", poolAddress, err)
	}

	var pair APIPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return APIPair{}, fmt.Errorf("meteora: decode pair: %w", err)
	}
	return pair, nil
}

// GetActiveBin returns the pool's current active bin and step size.
func (c *Client) GetActiveBin(ctx context.Context, poolAddress string) (domain.ActiveBin, error) {
	pair, err := c.GetPair(ctx, poolAddress)
	if err != nil {
		return domain.ActiveBin{}, err
	}
	return pair.ToActiveBin(), nil
}

// GetUSDPrice returns the pool's USD price from the pair record, normalizing
// across the several keys the API has used for it.
func (c *Client) GetUSDPrice(ctx context.Context, poolAddress string) (float64, error) {
	pair, err := c.GetPair(ctx, poolAddress)
	if err != nil {
		return 0, err
	}
	price, err := pair.USDPrice()
	if err != nil {
		return 0, fmt.Errorf("meteora: pair %s: %w", poolAddress, err)
	}
	return price, nil
}

// GetPositionBins returns the bin-level liquidity of a position. A missing
// position maps to domain.ErrPositionNotFound, the terminal signal callers
// use to stop monitoring and hedging.
func (c *Client) GetPositionBins(ctx context.Context, poolAddress, positionAddress, owner string) ([]domain.PositionBin, error) {
	params := url.Values{}
	params.Set("owner", owner)
	path := fmt.Sprintf("/pair/%s/position/%s?%s",
		url.PathEscape(poolAddress), url.PathEscape(positionAddress), params.Encode())

	body, err := c.doGet(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("meteora: position %s: %w", positionAddress, domain.ErrPositionNotFound)
		}
		return nil, fmt.Errorf("meteora: get position %s: %w", positionAddress, err)
	}

	var position APIPosition
	if err := json.Unmarshal(body, &position); err != nil {
		return nil, fmt.Errorf("meteora: decode position: %w", err)
	}
	return position.ToDomain(), nil
}

// BuildOpenPosition asks the API to build an initialize-position transaction
// spanning RangeInterval bins on each side of the active bin.
func (c *Client) BuildOpenPosition(ctx context.Context, req domain.OpenPositionRequest) (domain.TxCandidate, error) {
	body := initializePositionRequest{
		PoolAddress:   req.PoolAddress,
		Owner:         req.Owner,
		RangeInterval: req.RangeInterval,
		AmountX:       strconv.FormatUint(req.AmountX, 10),
		AmountY:       strconv.FormatUint(req.AmountY, 10),
	}

	resp, err := c.doPost(ctx, "/position/initialize", body)
	if err != nil {
		return domain.TxCandidate{}, fmt.Errorf("meteora: build open position: %w", err)
	}

	var tx transactionResponse
	if err := json.Unmarshal(resp, &tx); err != nil {
		return domain.TxCandidate{}, fmt.Errorf("meteora: decode open transaction: %w", err)
	}
	if tx.Transaction == "" || tx.PositionAddress == "" {
		return domain.TxCandidate{}, fmt.Errorf("meteora: open response missing transaction or position address")
	}
	return domain.TxCandidate{Base64: tx.Transaction, PositionAddress: tx.PositionAddress}, nil
}

// BuildClosePosition asks the API to build a transaction removing all
// liquidity and closing the position account.
func (c *Client) BuildClosePosition(ctx context.Context, poolAddress, positionAddress, owner string) (domain.TxCandidate, error) {
	body := closePositionRequest{
		PoolAddress:     poolAddress,
		PositionAddress: positionAddress,
		Owner:           owner,
	}

	resp, err := c.doPost(ctx, "/position/close", body)
	if err != nil {
		return domain.TxCandidate{}, fmt.Errorf("meteora: build close position: %w", err)
	}

	var tx transactionResponse
	if err := json.Unmarshal(resp, &tx); err != nil {
		return domain.TxCandidate{}, fmt.Errorf("meteora: decode close transaction: %w", err)
	}
	if tx.Transaction == "" {
		return domain.TxCandidate{}, fmt.Errorf("meteora: close response missing transaction")
	}
	return domain.TxCandidate{Base64: tx.Transaction}, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface checks.
var (
	_ domain.PoolDataProvider = (*Client)(nil)
	_ domain.PriceSource      = (*Client)(nil)
	_ domain.LiquidityManager = (*Client)(nil)
)
