// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/ethereum/go-ethereum/common"

// Withdrawal is an EIP-4895 validator withdrawal, carried in the block body
// from Shanghai onward. Amount is denominated in Gwei, matching the beacon
// chain's withdrawal representation.
type Withdrawal struct {
	Index     uint64         `json:"index"`
	Validator uint64         `json:"validatorIndex"`
	Address   common.Address `json:"address"`
	Amount    uint64         `json:"amount"`
}

// Withdrawals is a list of withdrawals in block-body order.
type Withdrawals []*Withdrawal
