// Package solana is a minimal JSON-RPC client for the bits of the Solana RPC
// API the bot needs: submitting transactions, confirming signatures, and
// reading token balances.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// Client talks to a Solana RPC node.
type Client struct {
	rpcURL     string
	commitment string
	httpClient *http.Client
}

// NewClient creates a Client for the given RPC endpoint. commitment is the
// level used for preflight and confirmation ("processed", "confirmed",
// "finalized").
func NewClient(rpcURL, commitment string) *Client {
	return &Client{
		rpcURL:     rpcURL,
		commitment: commitment,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("solana: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solana: %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("solana: read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solana: %s: HTTP %d: %s", method, resp.StatusCode, body)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("solana: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return c.mapRPCError(method, rpcResp.Error)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("solana: decode %s result: %w", method, err)
		}
	}
	return nil
}

// mapRPCError translates RPC failures into the domain error taxonomy: a
// preflight failure with program logs becomes a *domain.SimulationError, an
// insufficient-funds message becomes domain.ErrInsufficientBalance.
func (c *Client) mapRPCError(method string, rpcErr *rpcError) error {
	if len(rpcErr.Data) > 0 {
		var data struct {
			Logs []string `json:"logs"`
		}
		if err := json.Unmarshal(rpcErr.Data, &data); err == nil && len(data.Logs) > 0 {
			return &domain.SimulationError{Message: rpcErr.Message, Logs: data.Logs}
		}
	}
	msg := strings.ToLower(rpcErr.Message)
	if strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient lamports") {
		return fmt.Errorf("solana: %s: %s: %w", method, rpcErr.Message, domain.ErrInsufficientBalance)
	}
	return fmt.Errorf("solana: %s: RPC error %d: %s", method, rpcErr.Code, rpcErr.Message)
}

// SendTransaction submits a signed, base64-encoded transaction and returns
// its signature. Preflight simulation runs at the client's commitment.
func (c *Client) SendTransaction(ctx context.Context, signedBase64 string) (string, error) {
	var sig string
	err := c.call(ctx, "sendTransaction", []any{
		signedBase64,
		map[string]any{
			"encoding":            "base64",
			"preflightCommitment": c.commitment,
		},
	}, &sig)
	if err != nil {
		return "", err
	}
	return sig, nil
}

type signatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

type signatureStatusResult struct {
	Value []*signatureStatus `json:"value"`
}

// ConfirmSignature polls getSignatureStatuses until the signature reaches the
// client's commitment level, the transaction errors on-chain, or the attempt
// budget runs out.
func (c *Client) ConfirmSignature(ctx context.Context, signature string, attempts int, interval time.Duration) error {
	for attempt := 1; attempt <= attempts; attempt++ {
		var res signatureStatusResult
		err := c.call(ctx, "getSignatureStatuses", []any{
			[]string{signature},
			map[string]any{"searchTransactionHistory": false},
		}, &res)
		if err == nil && len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if len(status.Err) > 0 && string(status.Err) != "null" {
				return fmt.Errorf("solana: transaction %s failed on-chain: %s", signature, status.Err)
			}
			if confirmed(status.ConfirmationStatus, c.commitment) {
				return nil
			}
		} else if err != nil {
			// Transient poll failures just consume an attempt.
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("solana: transaction %s not confirmed after %d attempts", signature, attempts)
}

// confirmed reports whether a status satisfies the wanted commitment.
func confirmed(status, want string) bool {
	rank := map[string]int{"processed": 1, "confirmed": 2, "finalized": 3}
	s, w := rank[status], rank[want]
	if w == 0 {
		w = rank["confirmed"]
	}
	return s >= w
}

type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						TokenAmount struct {
							Amount string `json:"amount"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// GetBalance returns the owner's total smallest-unit balance for a mint,
// summed across token accounts. A wallet with no account for the mint holds
// zero; that is a valid balance, not an error.
func (c *Client) GetBalance(ctx context.Context, owner, mint string) (uint64, error) {
	var res tokenAccountsResult
	err := c.call(ctx, "getTokenAccountsByOwner", []any{
		owner,
		map[string]any{"mint": mint},
		map[string]any{"encoding": "jsonParsed", "commitment": c.commitment},
	}, &res)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, acc := range res.Value {
		n, err := strconv.ParseUint(acc.Account.Data.Parsed.Info.TokenAmount.Amount, 10, 64)
		if err != nil {
			continue
		}
		total += n
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.BalanceReader = (*Client)(nil)
