package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"wallet-ledger.backend/internal/domain/entities"
	domainerrors "wallet-ledger.backend/internal/domain/errors"
)

var dialEVMClient = ethclient.Dial

// standard transfer gas
const transferGas = 21000

// EVMGateway implements Gateway for EVM chains. Reads go straight to a
// node over RPC; submission and address history go through the custody
// signer, which owns the keys and the address index.
type EVMGateway struct {
	client   *ethclient.Client
	chainID  *big.Int
	currency entities.Currency
	signer   *SignerClient
}

// NewEVMGateway dials the node and binds the custody signer
func NewEVMGateway(rpcURL string, signer *SignerClient, currency entities.Currency) (*EVMGateway, error) {
	client, err := dialEVMClient(rpcURL)
	if err != nil {
		return nil, err
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, err
	}

	return &EVMGateway{
		client:   client,
		chainID:  chainID,
		currency: currency,
		signer:   signer,
	}, nil
}

// Submit hands the transfer to the custody signer
func (g *EVMGateway) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	return g.signer.Submit(ctx, req)
}

// FetchByHash returns the on-chain state of one transaction
func (g *EVMGateway) FetchByHash(ctx context.Context, currency entities.Currency, hash string) (*entities.BlockchainTransaction, error) {
	tx, isPending, err := g.client.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, domainerrors.ErrNotFound
	}

	from, err := types.Sender(types.LatestSignerForChainID(g.chainID), tx)
	if err != nil {
		return nil, err
	}

	out := &entities.BlockchainTransaction{
		Hash:        hash,
		FromAddress: from.Hex(),
		Currency:    currency,
		Value:       weiToDecimal(tx.Value()),
	}
	if tx.To() != nil {
		out.ToAddress = tx.To().Hex()
	}

	if isPending {
		out.Fee = weiToDecimal(new(big.Int).Mul(tx.GasPrice(), big.NewInt(transferGas)))
		return out, nil
	}

	receipt, err := g.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil {
		return nil, err
	}
	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	out.BlockNumber = receipt.BlockNumber.Int64()
	out.Confirmations = int(head - receipt.BlockNumber.Uint64() + 1)
	out.Fee = weiToDecimal(new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(receipt.GasUsed)))
	return out, nil
}

// FetchByAddress lists recent transfers touching an address. The node has
// no address index, so this goes through the signer service.
func (g *EVMGateway) FetchByAddress(ctx context.Context, currency entities.Currency, address string) ([]*entities.BlockchainTransaction, error) {
	return g.signer.ListByAddress(ctx, currency, address)
}

// Balance returns the confirmed native balance of an address
func (g *EVMGateway) Balance(ctx context.Context, currency entities.Currency, address string) (decimal.Decimal, error) {
	wei, err := g.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, err
	}
	return weiToDecimal(wei), nil
}

// EstimateFee returns the current fee for a standard transfer
func (g *EVMGateway) EstimateFee(ctx context.Context, currency entities.Currency) (decimal.Decimal, error) {
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return weiToDecimal(new(big.Int).Mul(gasPrice, big.NewInt(transferGas))), nil
}

// Close closes the node connection
func (g *EVMGateway) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

func weiToDecimal(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}
