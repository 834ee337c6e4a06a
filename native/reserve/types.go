package reserve

import "math/big"

// BalanceSheet captures the accounting state for a single supported asset.
// Amount values are expressed as big integers to keep arbitrary precision
// through interest accrual and fee arithmetic.
type BalanceSheet struct {
	// Cash is the underlying currency physically held by the reserve and
	// available for borrowing or redemption.
	Cash *big.Int
	// Debt tracks the outstanding principal plus accrued interest owed by
	// borrowers.
	Debt *big.Int
	// Revenue is the portion of debt and fees owned by the protocol. It is
	// layered on top of cash and never redeemable by receipt holders.
	Revenue *big.Int
	// ReceiptSupply is the total number of receipt-token units outstanding
	// for this asset.
	ReceiptSupply *big.Int
}

// Clone returns a deep copy of the balance sheet.
func (s *BalanceSheet) Clone() *BalanceSheet {
	if s == nil {
		return nil
	}
	clone := &BalanceSheet{
		Cash:          big.NewInt(0),
		Debt:          big.NewInt(0),
		Revenue:       big.NewInt(0),
		ReceiptSupply: big.NewInt(0),
	}
	if s.Cash != nil {
		clone.Cash.Set(s.Cash)
	}
	if s.Debt != nil {
		clone.Debt.Set(s.Debt)
	}
	if s.Revenue != nil {
		clone.Revenue.Set(s.Revenue)
	}
	if s.ReceiptSupply != nil {
		clone.ReceiptSupply.Set(s.ReceiptSupply)
	}
	return clone
}

// TotalValue returns cash + debt - revenue, the quantity redeemable by
// receipt holders in aggregate.
func (s *BalanceSheet) TotalValue() *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	total := new(big.Int).Add(s.Cash, s.Debt)
	return total.Sub(total, s.Revenue)
}

// Balance is a quantity of underlying currency in flight between the vault
// and a caller. Balances are consume-once: the engine spends them exactly
// once when they are merged back into a pool, and spending a balance twice
// is reported as a distinct error. Callers must not retain a balance after
// handing it to a consuming operation.
type Balance struct {
	asset  string
	amount *big.Int
	spent  bool
}

// NewBalance wraps currency entering the reserve from the outside world.
// The host environment is responsible for having actually moved the funds.
func NewBalance(asset string, amount *big.Int) *Balance {
	value := big.NewInt(0)
	if amount != nil && amount.Sign() > 0 {
		value.Set(amount)
	}
	return &Balance{asset: normalizeAsset(asset), amount: value}
}

// Asset returns the asset symbol the balance is denominated in.
func (b *Balance) Asset() string {
	if b == nil {
		return ""
	}
	return b.asset
}

// Amount returns a copy of the balance value. Reading the amount does not
// consume the balance.
func (b *Balance) Amount() *big.Int {
	if b == nil || b.amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b.amount)
}

// Spent reports whether the balance has already been consumed.
func (b *Balance) Spent() bool {
	return b != nil && b.spent
}

func (b *Balance) consume() (*big.Int, error) {
	if b == nil {
		return nil, ErrNilBalance
	}
	if b.spent {
		return nil, ErrBalanceSpent
	}
	b.spent = true
	return new(big.Int).Set(b.amount), nil
}

// FlashLoan is the obligation created when a flash loan is issued. It must
// be settled within the same atomic call sequence that created it; the
// engine tracks unsettled obligations so a transaction wrapper can refuse
// to commit while any remain outstanding.
type FlashLoan struct {
	asset   string
	amount  *big.Int
	fee     *big.Int
	settled bool
}

// Asset returns the asset the loan was issued in.
func (l *FlashLoan) Asset() string {
	if l == nil {
		return ""
	}
	return l.asset
}

// Amount returns the loan principal.
func (l *FlashLoan) Amount() *big.Int {
	if l == nil || l.amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(l.amount)
}

// Fee returns the fee owed on settlement.
func (l *FlashLoan) Fee() *big.Int {
	if l == nil || l.fee == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(l.fee)
}

// Settled reports whether the obligation has been consumed by settlement.
func (l *FlashLoan) Settled() bool {
	return l != nil && l.settled
}
