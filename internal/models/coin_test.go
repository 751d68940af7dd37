package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignedAmount(t *testing.T) {
	cases := []struct {
		name   string
		txType CoinTransactionType
		amount int64
		want   int64
	}{
		{"Earn Adds", CoinTxEarn, 50, 50},
		{"Coin Refund Adds", CoinTxRefund, 20, 20},
		{"Spend Subtracts", CoinTxSpend, 20, -20},
		{"Coin Revoke Subtracts", CoinTxRevoke, 50, -50},
		{"Fee Has No Coin Weight", CoinTxFee, 400, 0},
		{"Monetary Refund Has No Coin Weight", CoinTxMoneyRefund, 3600, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := CoinTransaction{Type: tc.txType, Amount: tc.amount}
			assert.Equal(t, tc.want, tx.SignedAmount())
		})
	}
}
