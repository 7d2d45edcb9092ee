// Package jupiter is the REST client for the Jupiter swap aggregator, used to
// quote and build the hedge swaps.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// Client talks to the Jupiter quote/swap API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Jupiter client.
//
// baseURL is the API root, e.g. "https://quote-api.jup.ag/v6".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiQuote is the subset of the quote response the bot reads. The full body
// is retained verbatim because the swap endpoint wants it back unchanged.
type apiQuote struct {
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

// GetQuote fetches a swap quote for the given route and amount.
func (c *Client) GetQuote(ctx context.Context, req domain.QuoteRequest) (domain.SwapQuote, error) {
	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	params.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	body, err := c.doGet(ctx, "/quote?"+params.Encode())
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: get quote: %w", err)
	}

	var quote apiQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: decode quote: %w", err)
	}
	inAmount, err := strconv.ParseUint(quote.InAmount, 10, 64)
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: parse inAmount %q: %w", quote.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(quote.OutAmount, 10, 64)
	if err != nil {
		return domain.SwapQuote{}, fmt.Errorf("jupiter: parse outAmount %q: %w", quote.OutAmount, err)
	}

	return domain.SwapQuote{
		InputMint:  quote.InputMint,
		OutputMint: quote.OutputMint,
		InAmount:   inAmount,
		OutAmount:  outAmount,
		Raw:        body,
	}, nil
}

// swapRequest is the body for the swap-build endpoint. QuoteResponse is the
// untouched quote body.
type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwapTransaction asks Jupiter to build the swap transaction for a
// previously fetched quote, to be signed by wallet.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote domain.SwapQuote, wallet string) (domain.TxCandidate, error) {
	if len(quote.Raw) == 0 {
		return domain.TxCandidate{}, fmt.Errorf("jupiter: quote carries no raw response")
	}

	payload, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.Raw,
		UserPublicKey:    wallet,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return domain.TxCandidate{}, fmt.Errorf("jupiter: marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return domain.TxCandidate{}, fmt.Errorf("jupiter: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return domain.TxCandidate{}, fmt.Errorf("jupiter: build swap: %w", err)
	}

	var swap swapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return domain.TxCandidate{}, fmt.Errorf("jupiter: decode swap: %w", err)
	}
	if swap.SwapTransaction == "" {
		return domain.TxCandidate{}, fmt.Errorf("jupiter: swap response missing transaction")
	}
	return domain.TxCandidate{Base64: swap.SwapTransaction}, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
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
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

// Compile-time interface check.
var _ domain.SwapRouter = (*Client)(nil)
