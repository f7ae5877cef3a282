package notify

// console.go — reporting del ledger por consola. Dos modos: compacto (una
// línea por snapshot, para runs largos) y tabla completa de deudas, fees y
// vault al final del escenario.

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/levsim/internal/domain"
)

// Console implementa ports.Reporter.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Report imprime el snapshot en el modo configurado.
func (c *Console) Report(_ context.Context, snap domain.LedgerSnapshot) error {
	if c.table {
		c.printFull(snap)
	} else {
		c.printCompact(snap)
	}
	return nil
}

// printCompact resume el snapshot en una línea.
func (c *Console) printCompact(snap domain.LedgerSnapshot) {
	liquidatable := 0
	totalBorrowed := new(big.Int)
	for _, d := range snap.Debts {
		if d.Liquidatable() {
			liquidatable++
		}
		totalBorrowed.Add(totalBorrowed, d.Info.BorrowedAmount)
	}
	fmt.Fprintf(c.out, "[t=%d] debts:%d (liq:%d) borrowed:%s pairs:%d lender-buckets:%d\n",
		snap.Timestamp, len(snap.Debts), liquidatable, totalBorrowed.String(), len(snap.Rates), len(snap.Fees))
}

// printFull imprime las tablas de deudas, rates, fees y vault.
func (c *Console) printFull(snap domain.LedgerSnapshot) {
	fmt.Fprintf(c.out, "\n[t=%d] %d debts — %d pairs\n", snap.Timestamp, len(snap.Debts), len(snap.Rates))

	if len(snap.Debts) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "Key", "Borrower", "Borrowed", "Collateral", "Life", "Loans", "State")
		for i, d := range snap.Debts {
			state := "active"
			if d.Liquidatable() {
				state = "LIQUIDATABLE"
			}
			table.Append(
				fmt.Sprintf("%d", i+1),
				shortHex(d.Info.Key.Hex()),
				shortHex(d.Info.Borrower.Hex()),
				d.Info.BorrowedAmount.String(),
				d.CollateralBalance.String(),
				formatLifetime(d.EstimatedLifeTime),
				fmt.Sprintf("%d", len(d.Loans)),
				state,
			)
		}
		table.Render()
	}

	if len(snap.Rates) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Sale", "Hold", "Rate bp/day", "Entrance bp", "Total borrowed")
		for _, r := range snap.Rates {
			table.Append(
				shortHex(r.Pair.SaleToken.Hex()),
				shortHex(r.Pair.HoldToken.Hex()),
				fmt.Sprintf("%d", r.CurrentDailyRate),
				fmt.Sprintf("%d", r.EntranceFeeBP),
				r.TotalBorrowed.String(),
			)
		}
		table.Render()
	}

	if len(snap.Fees) > 0 || len(snap.Platform) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Holder", "Token", "Accrued (1e18)")
		for _, f := range snap.Fees {
			table.Append(shortHex(f.Holder.Hex()), shortHex(f.Token.Hex()), f.Amount.String())
		}
		for _, f := range snap.Platform {
			table.Append("platform", shortHex(f.Token.Hex()), f.Amount.String())
		}
		table.Render()
	}

	if len(snap.Vault) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Token", "Vault balance")
		for _, v := range snap.Vault {
			table.Append(shortHex(v.Token.Hex()), v.Amount.String())
		}
		table.Render()
	}
}

func shortHex(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:8] + ".." + s[len(s)-4:]
}

func formatLifetime(seconds int64) string {
	switch {
	case seconds <= 0:
		return "-"
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%.1fh", float64(seconds)/3600)
	default:
		return fmt.Sprintf("%.1fd", float64(seconds)/86400)
	}
}
