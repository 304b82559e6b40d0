// Package wallet holds the signing key for bundle transactions.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet signs transactions with a single key for a single chain.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	signer     types.Signer
}

// New derives a wallet from a hex-encoded private key. The chain id is fixed
// at construction so every signature binds to one chain.
func New(privateKeyHex string, chainID *big.Int) (*Wallet, error) {
	if chainID == nil {
		return nil, fmt.Errorf("chain id is required")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return &Wallet{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
		signer:     types.LatestSignerForChainID(chainID),
	}, nil
}

// Address returns the account derived from the signing key.
func (w *Wallet) Address() common.Address {
	return w.address
}

// ChainID returns the chain the wallet signs for.
func (w *Wallet) ChainID() *big.Int {
	return new(big.Int).Set(w.chainID)
}

// Sign signs the transaction and returns its raw encoding ready for a relay
// bundle.
func (w *Wallet) Sign(tx *types.Transaction) (hexutil.Bytes, error) {
	signed, err := types.SignTx(tx, w.signer, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %v", err)
	}
	return raw, nil
}
