package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

func TestGetQuoteAndBuildSwap(t *testing.T) {
	quoteBody := map[string]any{
		"inputMint":  "MintA",
		"outputMint": "MintB",
		"inAmount":   "1000000",
		"outAmount":  "995000",
		"routePlan":  []any{map[string]any{"percent": 100}},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			q := r.URL.Query()
			if q.Get("inputMint") != "MintA" || q.Get("amount") != "1000000" || q.Get("slippageBps") != "50" {
				http.Error(w, "unexpected query", http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(quoteBody)
		case "/swap":
			var req struct {
				QuoteResponse json.RawMessage `json:"quoteResponse"`
				UserPublicKey string          `json:"userPublicKey"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			// The swap endpoint must receive the quote verbatim.
			var echoed map[string]any
			if err := json.Unmarshal(req.QuoteResponse, &echoed); err != nil || echoed["inAmount"] != "1000000" {
				http.Error(w, "quote not echoed", http.StatusBadRequest)
				return
			}
			if req.UserPublicKey != "wallet1" {
				http.Error(w, "wrong wallet", http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"swapTransaction": "c3dhcA=="})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	quote, err := c.GetQuote(ctx, domain.QuoteRequest{
		InputMint:   "MintA",
		OutputMint:  "MintB",
		Amount:      1_000_000,
		SlippageBps: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if quote.InAmount != 1_000_000 || quote.OutAmount != 995_000 {
		t.Fatalf("quote = %+v", quote)
	}
	if len(quote.Raw) == 0 {
		t.Fatal("raw quote body not retained")
	}

	tx, err := c.BuildSwapTransaction(ctx, quote, "wallet1")
	if err != nil {
		t.Fatal(err)
	}
	if tx.Base64 != "c3dhcA==" {
		t.Fatalf("tx = %+v", tx)
	}
}

func TestBuildSwapRejectsEmptyQuote(t *testing.T) {
	c := NewClient("http://unused.invalid")
	if _, err := c.BuildSwapTransaction(context.Background(), domain.SwapQuote{}, "wallet1"); err == nil {
		t.Fatal("expected error for quote without raw body")
	}
}
