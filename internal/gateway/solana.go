package gateway

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rugs-trade-bot-go/internal/config"
)

const lamportsExponent = -9

// balanceRPC is the subset of the Solana RPC client used to read a wallet balance.
type balanceRPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
}

// SolanaBalance reads the SOL balance of a wallet as the available capital.
type SolanaBalance struct {
	rpc        balanceRPC
	wallet     solana.PublicKey
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

var _ BalanceSource = (*SolanaBalance)(nil)

// NewSolanaBalance creates a balance source for cfg.WalletAddress on cfg.RPCURL.
func NewSolanaBalance(cfg config.Solana, logger *zap.Logger) (*SolanaBalance, error) {
	return newSolanaBalance(rpc.New(cfg.RPCURL), cfg, logger)
}

func newSolanaBalance(client balanceRPC, cfg config.Solana, logger *zap.Logger) (*SolanaBalance, error) {
	wallet, err := solana.PublicKeyFromBase58(cfg.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet address %q: %w", cfg.WalletAddress, err)
	}

	commitment := rpc.CommitmentConfirmed
	switch cfg.Commitment {
	case string(rpc.CommitmentFinalized):
		commitment = rpc.CommitmentFinalized
	case string(rpc.CommitmentProcessed):
		commitment = rpc.CommitmentProcessed
	}

	return &SolanaBalance{
		rpc:        client,
		wallet:     wallet,
		commitment: commitment,
		logger:     logger.Named("solana"),
	}, nil
}

// AvailableBalance returns the wallet balance in SOL.
func (s *SolanaBalance) AvailableBalance(ctx context.Context) (float64, error) {
	res, err := s.rpc.GetBalance(ctx, s.wallet, s.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for %s: %w", s.wallet, err)
	}
	sol := decimal.New(int64(res.Value), lamportsExponent)
	s.logger.Debug("Wallet balance", zap.String("wallet", s.wallet.String()), zap.String("sol", sol.String()))
	return sol.InexactFloat64(), nil
}
