package chain

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// purchaseABI is the built-in ABI for the pass contract's purchase
// function, used when the metadata endpoint does not ship one.
const purchaseABI = `[{
	"name": "purchase",
	"type": "function",
	"stateMutability": "payable",
	"inputs": [
		{"name": "buyer", "type": "address"},
		{"name": "itemId", "type": "uint256"},
		{"name": "quantity", "type": "uint256"},
		{"name": "minPrice", "type": "uint256"},
		{"name": "validUntil", "type": "uint256"},
		{"name": "nonce", "type": "bytes32"},
		{"name": "signature", "type": "bytes"}
	],
	"outputs": []
}]`

var (
	builtinABIOnce sync.Once
	builtinABI     abi.ABI
	builtinABIErr  error
)

// PurchaseCall carries the arguments of the on-chain purchase function in
// the exact order the contract expects.
type PurchaseCall struct {
	Buyer      string
	ItemID     *big.Int
	Quantity   *big.Int
	MinPrice   *big.Int
	ValidUntil *big.Int
	Nonce      [32]byte
	Signature  []byte
}

// EncodePurchaseCall ABI-encodes the purchase call against the metadata's
// ABI (or the built-in one). The transaction value must equal MinPrice;
// the contract rejects both under- and overpayment, and the client never
// recomputes price.
func EncodePurchaseCall(meta ContractMetadata, call PurchaseCall) ([]byte, error) {
	parsed, err := resolveABI(meta)
	if err != nil {
		return nil, err
	}

	if !common.IsHexAddress(call.Buyer) {
		return nil, fmt.Errorf("invalid buyer address %q", call.Buyer)
	}

	data, err := parsed.Pack("purchase",
		common.HexToAddress(call.Buyer),
		call.ItemID,
		call.Quantity,
		call.MinPrice,
		call.ValidUntil,
		call.Nonce,
		call.Signature,
	)
	if err != nil {
		return nil, fmt.Errorf("encode purchase call: %w", err)
	}
	return data, nil
}

func resolveABI(meta ContractMetadata) (abi.ABI, error) {
	if meta.ABI != "" {
		parsed, err := abi.JSON(strings.NewReader(meta.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("parse contract abi: %w", err)
		}
		return parsed, nil
	}

	builtinABIOnce.Do(func() {
		builtinABI, builtinABIErr = abi.JSON(strings.NewReader(purchaseABI))
	})
	return builtinABI, builtinABIErr
}
