package solana

import (
	"context"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// InstructionSummary is a human-readable description of one instruction in an
// unsigned transaction, shown to the user before they sign.
type InstructionSummary struct {
	Type        string `json:"type"`
	Program     string `json:"program"`
	Description string `json:"description"`
}

// UnsignedTransfer is the payload handed back to the client for signing.
// SerializedTransaction is the base64-encoded unsigned transaction.
type UnsignedTransfer struct {
	TransactionType         string               `json:"transactionType"` // SOL_TRANSFER | SPL_TOKEN_TRANSFER
	SerializedTransaction   string               `json:"serializedTransaction"`
	Blockhash               string               `json:"blockhash"`
	LastValidBlockHeight    uint64               `json:"lastValidBlockHeight"`
	Instructions            []InstructionSummary `json:"instructions"`
	From                    string               `json:"from"`
	To                      string               `json:"to"`
	Amount                  float64              `json:"amount"`
	Token                   string               `json:"token"`
	RecipientAccountCreated bool                 `json:"recipientAccountCreated,omitempty"`
}

// BuildSOLTransfer constructs an unsigned SOL transfer from the caller's
// wallet. The fee payer is the sender; nothing here signs or broadcasts.
func (c *Client) BuildSOLTransfer(ctx context.Context, from, to solana.PublicKey, amountSOL float64) (*UnsignedTransfer, error) {
	if amountSOL <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %v", amountSOL)
	}
	lamports := uint64(math.Round(amountSOL * float64(solana.LAMPORTS_PER_SOL)))

	blockhash, lastValid, err := c.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	ix := system.NewTransferInstruction(lamports, from, to).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	serialized, err := tx.ToBase64()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	return &UnsignedTransfer{
		TransactionType:       "SOL_TRANSFER",
		SerializedTransaction: serialized,
		Blockhash:             blockhash.String(),
		LastValidBlockHeight:  lastValid,
		From:                  from.String(),
		To:                    to.String(),
		Amount:                amountSOL,
		Token:                 "SOL",
		Instructions: []InstructionSummary{{
			Type:        "transfer",
			Program:     "system",
			Description: fmt.Sprintf("Transfer %s SOL from %s to %s", FormatLamports(lamports), from, to),
		}},
	}, nil
}

// BuildTokenTransfer constructs an unsigned SPL token transfer. When the
// recipient has no associated token account an ATA-create instruction is
// prepended, funded by the sender.
func (c *Client) BuildTokenTransfer(ctx context.Context, from, to solana.PublicKey, symbol string, amount float64) (*UnsignedTransfer, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %v", amount)
	}
	tok, ok := c.tokens[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", symbol)
	}
	mint, err := solana.PublicKeyFromBase58(tok.Mint)
	if err != nil {
		return nil, fmt.Errorf("bad mint for %s: %w", symbol, err)
	}

	sourceATA, _, err := solana.FindAssociatedTokenAddress(from, mint)
	if err != nil {
		return nil, fmt.Errorf("derive source ATA: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return nil, fmt.Errorf("derive destination ATA: %w", err)
	}

	raw := uint64(math.Round(amount * math.Pow10(int(tok.Decimals))))

	var instructions []solana.Instruction
	var summaries []InstructionSummary
	createdATA := false

	exists, err := c.AccountExists(ctx, destATA)
	if err != nil {
		return nil, err
	}
	if !exists {
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(from, to, mint).Build())
		summaries = append(summaries, InstructionSummary{
			Type:        "create_account",
			Program:     "associated-token-account",
			Description: fmt.Sprintf("Create %s token account for %s (rent paid by sender)", symbol, to),
		})
		createdATA = true
	}

	instructions = append(instructions,
		token.NewTransferCheckedInstruction(raw, tok.Decimals, sourceATA, mint, destATA, from, nil).Build())
	summaries = append(summaries, InstructionSummary{
		Type:        "transfer_checked",
		Program:     "token",
		Description: fmt.Sprintf("Transfer %v %s from %s to %s", amount, symbol, from, to),
	})

	blockhash, lastValid, err := c.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(from))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	serialized, err := tx.ToBase64()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	return &UnsignedTransfer{
		TransactionType:         "SPL_TOKEN_TRANSFER",
		SerializedTransaction:   serialized,
		Blockhash:               blockhash.String(),
		LastValidBlockHeight:    lastValid,
		From:                    from.String(),
		To:                      to.String(),
		Amount:                  amount,
		Token:                   symbol,
		Instructions:            summaries,
		RecipientAccountCreated: createdATA,
	}, nil
}
