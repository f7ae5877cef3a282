package storage

// doc.go — proyección JSON del snapshot del ledger. Los big.Int se serializan
// como strings decimales para no perder precisión.

import (
	"math/big"

	"github.com/alejandrodnm/levsim/internal/domain"
)

type snapDoc struct {
	Timestamp int64          `json:"timestamp"`
	Debts     []debtDoc      `json:"debts,omitempty"`
	Rates     []rateDoc      `json:"rates,omitempty"`
	Fees      []feeDoc       `json:"fees,omitempty"`
	Platform  []feeDoc       `json:"platform,omitempty"`
	Vault     []vaultBalDoc  `json:"vault,omitempty"`
}

type debtDoc struct {
	Key               string    `json:"key"`
	Borrower          string    `json:"borrower"`
	SaleToken         string    `json:"sale_token"`
	HoldToken         string    `json:"hold_token"`
	BorrowedAmount    string    `json:"borrowed_amount"`
	LiquidationBonus  string    `json:"liquidation_bonus"`
	CollateralBalance string    `json:"collateral_balance"`
	EstimatedLifeTime int64     `json:"estimated_lifetime"`
	Loans             []loanDoc `json:"loans,omitempty"`
}

type loanDoc struct {
	TokenID   uint64 `json:"token_id"`
	Liquidity string `json:"liquidity"`
}

type rateDoc struct {
	SaleToken     string `json:"sale_token"`
	HoldToken     string `json:"hold_token"`
	DailyRateBP   uint64 `json:"daily_rate_bp"`
	EntranceFeeBP uint64 `json:"entrance_fee_bp"`
	TotalBorrowed string `json:"total_borrowed"`
}

type feeDoc struct {
	Holder string `json:"holder,omitempty"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type vaultBalDoc struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func snapshotDoc(s domain.LedgerSnapshot) snapDoc {
	doc := snapDoc{Timestamp: s.Timestamp}

	for _, d := range s.Debts {
		loans := make([]loanDoc, 0, len(d.Loans))
		for _, l := range d.Loans {
			loans = append(loans, loanDoc{TokenID: l.TokenID, Liquidity: decimal(l.Liquidity)})
		}
		doc.Debts = append(doc.Debts, debtDoc{
			Key:               d.Info.Key.Hex(),
			Borrower:          d.Info.Borrower.Hex(),
			SaleToken:         d.Info.SaleToken.Hex(),
			HoldToken:         d.Info.HoldToken.Hex(),
			BorrowedAmount:    decimal(d.Info.BorrowedAmount),
			LiquidationBonus:  decimal(d.Info.LiquidationBonus),
			CollateralBalance: decimal(d.CollateralBalance),
			EstimatedLifeTime: d.EstimatedLifeTime,
			Loans:             loans,
		})
	}
	for _, r := range s.Rates {
		doc.Rates = append(doc.Rates, rateDoc{
			SaleToken:     r.Pair.SaleToken.Hex(),
			HoldToken:     r.Pair.HoldToken.Hex(),
			DailyRateBP:   r.CurrentDailyRate,
			EntranceFeeBP: r.EntranceFeeBP,
			TotalBorrowed: decimal(r.TotalBorrowed),
		})
	}
	for _, f := range s.Fees {
		doc.Fees = append(doc.Fees, feeDoc{Holder: f.Holder.Hex(), Token: f.Token.Hex(), Amount: decimal(f.Amount)})
	}
	for _, f := range s.Platform {
		doc.Platform = append(doc.Platform, feeDoc{Token: f.Token.Hex(), Amount: decimal(f.Amount)})
	}
	for _, v := range s.Vault {
		doc.Vault = append(doc.Vault, vaultBalDoc{Token: v.Token.Hex(), Amount: decimal(v.Amount)})
	}
	return doc
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
