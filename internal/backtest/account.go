package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DustSize is the smallest position that counts as holding anything.
const DustSize = 0.001

// CashPlaces is the number of decimal places sale proceeds are rounded to.
// Selling a position at its buy price returns exactly the notional.
const CashPlaces = 8

var dust = decimal.NewFromFloat(DustSize)

// Invest is the fixed-notional investment plan of a simulated account.
type Invest struct {
	Balance        float64
	InvestPerTrade float64
	// LossCut, when set, halts the run once the position is liquidated and
	// cash has fallen below it.
	LossCut *float64
}

// Validate checks that one trade's notional fits into the starting balance.
func (i Invest) Validate() error {
	if i.InvestPerTrade <= 0 {
		return fmt.Errorf("invest per trade must be positive, got %v", i.InvestPerTrade)
	}
	if i.InvestPerTrade > i.Balance {
		return fmt.Errorf("invest per trade %v must not exceed balance %v", i.InvestPerTrade, i.Balance)
	}
	return nil
}

// Snapshot is the observable state of an Account.
type Snapshot struct {
	Cash     float64 `json:"cash"`
	Position float64 `json:"position"`
}

// Account is the cash and position of one simulation. It is owned by a single
// Simulator and not safe for concurrent use.
type Account struct {
	cash     decimal.Decimal
	position decimal.Decimal
	invest   decimal.Decimal
	lossCut  *decimal.Decimal
}

// NewAccount opens an account holding inv.Balance in cash.
func NewAccount(inv Invest) (*Account, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	a := &Account{
		cash:     decimal.NewFromFloat(inv.Balance),
		position: decimal.Zero,
		invest:   decimal.NewFromFloat(inv.InvestPerTrade),
	}
	if inv.LossCut != nil {
		lc := decimal.NewFromFloat(*inv.LossCut)
		a.lossCut = &lc
	}
	return a, nil
}

// ApplyBuy converts one trade's notional into position at price. It is a no-op,
// returning false, unless cash strictly exceeds the notional.
func (a *Account) ApplyBuy(price float64) (float64, bool) {
	if price <= 0 || !a.cash.GreaterThan(a.invest) {
		return 0, false
	}
	size := a.invest.Div(decimal.NewFromFloat(price))
	a.cash = a.cash.Sub(a.invest)
	a.position = a.position.Add(size)
	return size.InexactFloat64(), true
}

// ApplySell liquidates size at price, or the whole position when size is zero
// or exceeds it. It is a no-op, returning false, while the position is dust.
func (a *Account) ApplySell(price, size float64) (float64, bool) {
	if a.position.LessThan(dust) {
		return 0, false
	}
	sz := decimal.NewFromFloat(size)
	if size <= 0 || sz.GreaterThan(a.position) {
		sz = a.position
	}
	a.position = a.position.Sub(sz)
	a.cash = a.cash.Add(sz.Mul(decimal.NewFromFloat(price)).Round(CashPlaces))
	return sz.InexactFloat64(), true
}

// LossCutBreached reports whether a loss cut is set, the position is dust and
// cash is below the loss cut.
func (a *Account) LossCutBreached() bool {
	return a.lossCut != nil && a.position.LessThan(dust) && a.cash.LessThan(*a.lossCut)
}

// Equity values the account with the position marked at price.
func (a *Account) Equity(price float64) float64 {
	return a.cash.Add(a.position.Mul(decimal.NewFromFloat(price))).InexactFloat64()
}

// Snapshot returns the current cash and position.
func (a *Account) Snapshot() Snapshot {
	return Snapshot{Cash: a.cash.InexactFloat64(), Position: a.position.InexactFloat64()}
}
