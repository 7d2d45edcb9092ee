package solana

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/crypto"
	"github.com/alanyoungcy/dlmmbot/internal/domain"
)

// Executor signs transaction candidates with the wallet key, submits them,
// and waits for confirmation. It is the single path every on-chain mutation
// goes through.
type Executor struct {
	client          *Client
	signer          *crypto.Signer
	confirmAttempts int
	confirmInterval time.Duration
	log             *slog.Logger
}

func NewExecutor(client *Client, signer *crypto.Signer, confirmAttempts int, confirmInterval time.Duration, log *slog.Logger) *Executor {
	return &Executor{
		client:          client,
		signer:          signer,
		confirmAttempts: confirmAttempts,
		confirmInterval: confirmInterval,
		log:             log.With("component", "executor"),
	}
}

// Submit signs, sends, and confirms a transaction, returning its signature.
func (e *Executor) Submit(ctx context.Context, tx domain.TxCandidate) (string, error) {
	wire, err := base64.StdEncoding.DecodeString(tx.Base64)
	if err != nil {
		return "", fmt.Errorf("solana: decode transaction: %w", err)
	}

	signed, _, err := e.signer.SignTransaction(wire)
	if err != nil {
		return "", err
	}

	sig, err := e.client.SendTransaction(ctx, base64.StdEncoding.EncodeToString(signed))
	if err != nil {
		return "", err
	}
	e.log.Debug("transaction submitted", "signature", sig)

	if err := e.client.ConfirmSignature(ctx, sig, e.confirmAttempts, e.confirmInterval); err != nil {
		return "", err
	}
	return sig, nil
}

// Compile-time interface check.
var _ domain.ExecutionService = (*Executor)(nil)
