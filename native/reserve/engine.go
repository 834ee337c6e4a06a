package reserve

import (
	"math/big"

	nativecommon "openreserve/native/common"
)

const moduleName = "reserve"

type engineState interface {
	GetBalanceSheet(asset string) (*BalanceSheet, error)
	PutBalanceSheet(asset string, sheet *BalanceSheet) error
	GetPrice(asset string) (*big.Rat, error)
	PutPrice(asset string, price *big.Rat) error
	GetFlashFeeRate(asset string) (uint64, error)
	PutFlashFeeRate(asset string, bps uint64) error
	GetVault(asset string) (*big.Int, error)
	PutVault(asset string, amount *big.Int) error
	GetFeeVault(asset string) (*big.Int, bool, error)
	PutFeeVault(asset string, amount *big.Int) error
}

// Engine orchestrates the reserve ledger: per-asset balance sheets, the
// monotonic price table, mint/redeem, borrow/repay, interest accrual, flash
// loans and the segregated borrow-fee vault. Every public method mutates at
// most one asset's rows; the caller wraps each call in a staged state
// transaction so a failure leaves no partial effects.
type Engine struct {
	state       engineState
	pauses      nativecommon.PauseView
	authority   nativecommon.Capability
	outstanding int
}

// NewEngine constructs an engine. Persistence and the authority capability
// are wired with SetState and SetAuthority before first use.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the module pause view consulted by mutating operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetAuthority records the capability that privileged operations must
// present. The engine checks possession only, never identity.
func (e *Engine) SetAuthority(cap nativecommon.Capability) {
	if e == nil {
		return
	}
	e.authority = cap
}

// OutstandingLoans reports the number of issued flash loans not yet
// settled. Transaction wrappers must refuse to commit while it is non-zero.
func (e *Engine) OutstandingLoans() int {
	if e == nil {
		return 0
	}
	return e.outstanding
}

// RegisterAsset creates a zeroed balance sheet, an empty vault pool and a
// zero flash-loan fee entry for the asset. Registering twice fails.
func (e *Engine) RegisterAsset(asset string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	asset = normalizeAsset(asset)
	if asset == "" {
		return ErrUnregisteredAsset
	}
	existing, err := e.state.GetBalanceSheet(asset)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyRegistered
	}
	sheet := &BalanceSheet{
		Cash:          big.NewInt(0),
		Debt:          big.NewInt(0),
		Revenue:       big.NewInt(0),
		ReceiptSupply: big.NewInt(0),
	}
	if err := e.state.PutBalanceSheet(asset, sheet); err != nil {
		return err
	}
	if err := e.state.PutVault(asset, big.NewInt(0)); err != nil {
		return err
	}
	return e.state.PutFlashFeeRate(asset, 0)
}

// BalanceSheet returns a copy of the asset's balance sheet.
func (e *Engine) BalanceSheet(asset string) (*BalanceSheet, error) {
	sheet, err := e.ensureSheet(asset)
	if err != nil {
		return nil, err
	}
	return sheet.Clone(), nil
}

// Price returns the stored exchange price for the asset, lazily defaulting
// to one before the first mint or redeem computes it. Queries never mutate
// the price table.
func (e *Engine) Price(asset string) (*big.Rat, error) {
	if _, err := e.ensureSheet(asset); err != nil {
		return nil, err
	}
	stored, err := e.state.GetPrice(normalizeAsset(asset))
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return cloneRat(oneRat), nil
	}
	return cloneRat(stored), nil
}

// FlashFeeRate returns the configured flash-loan fee rate in basis points.
func (e *Engine) FlashFeeRate(asset string) (uint64, error) {
	if _, err := e.ensureSheet(asset); err != nil {
		return 0, err
	}
	return e.state.GetFlashFeeRate(normalizeAsset(asset))
}

// FeeVaultBalance reports the accumulated borrow fees for the asset. An
// asset whose vault was never created reports zero.
func (e *Engine) FeeVaultBalance(asset string) (*big.Int, error) {
	if _, err := e.ensureSheet(asset); err != nil {
		return nil, err
	}
	pool, ok, err := e.state.GetFeeVault(normalizeAsset(asset))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return pool, nil
}

// AccrueInterest grows the asset's debt by growthRate and reserves
// revenueFactor of that growth as protocol income. Cash is untouched:
// interest is recognised as owed, it becomes cash only when repaid. A zero
// growth rate is a no-op; repeated calls compound.
func (e *Engine) AccrueInterest(asset string, growthRate, revenueFactor *big.Rat) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if (growthRate != nil && growthRate.Sign() < 0) || (revenueFactor != nil && revenueFactor.Sign() < 0) {
		return ErrInvalidRate
	}
	sheet, err := e.ensureSheet(asset)
	if err != nil {
		return err
	}
	if growthRate == nil || growthRate.Sign() == 0 {
		return nil
	}
	debtIncrease := mulRatFloor(sheet.Debt, growthRate)
	if debtIncrease.Sign() == 0 {
		return nil
	}
	revenueIncrease := mulRatFloor(debtIncrease, revenueFactor)
	sheet.Debt = new(big.Int).Add(sheet.Debt, debtIncrease)
	sheet.Revenue = new(big.Int).Add(sheet.Revenue, revenueIncrease)
	return e.state.PutBalanceSheet(normalizeAsset(asset), sheet)
}

// Mint converts an underlying deposit into receipt tokens at the current
// exchange price. The deposit is consumed into the vault and the returned
// value is the number of receipt units created.
func (e *Engine) Mint(deposit *Balance) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, ErrNilBalance
	}
	asset := deposit.Asset()
	sheet, err := e.ensureSheet(asset)
	if err != nil {
		return nil, err
	}
	if deposit.Amount().Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	price, err := e.refreshPrice(asset, sheet)
	if err != nil {
		return nil, err
	}
	receipts := divRatFloor(deposit.Amount(), price)
	if receipts.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}
	amount, err := deposit.consume()
	if err != nil {
		return nil, err
	}
	if err := e.creditVault(asset, amount); err != nil {
		return nil, err
	}
	sheet.Cash = new(big.Int).Add(sheet.Cash, amount)
	sheet.ReceiptSupply = new(big.Int).Add(sheet.ReceiptSupply, receipts)
	if err := e.state.PutBalanceSheet(asset, sheet); err != nil {
		return nil, err
	}
	return receipts, nil
}

// Redeem burns receipt tokens and releases the corresponding underlying
// amount from the vault. Redemption never lets cash fall below the
// protocol's revenue claim.
func (e *Engine) Redeem(asset string, receipts *big.Int) (*Balance, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if receipts == nil || receipts.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset = normalizeAsset(asset)
	sheet, err := e.ensureSheet(asset)
	if err != nil {
		return nil, err
	}
	if receipts.Cmp(sheet.ReceiptSupply) > 0 {
		return nil, ErrInvalidAmount
	}
	price, err := e.refreshPrice(asset, sheet)
	if err != nil {
		return nil, err
	}
	underlying := mulRatFloor(receipts, price)
	if underlying.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}
	remaining := new(big.Int).Sub(sheet.Cash, underlying)
	if remaining.Sign() < 0 || remaining.Cmp(sheet.Revenue) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	if err := e.debitVault(asset, underlying, ErrInsufficientLiquidity); err != nil {
		return nil, err
	}
	sheet.Cash = remaining
	sheet.ReceiptSupply = new(big.Int).Sub(sheet.ReceiptSupply, receipts)
	if err := e.state.PutBalanceSheet(asset, sheet); err != nil {
		return nil, err
	}
	return &Balance{asset: asset, amount: underlying}, nil
}

// Borrow moves cash out of the reserve and recognises it as debt.
func (e *Engine) Borrow(asset string, amount *big.Int) (*Balance, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset = normalizeAsset(asset)
	sheet, err := e.ensureSheet(asset)
	if err != nil {
		return nil, err
	}
	if sheet.Cash.Cmp(amount) < 0 {
		return nil, ErrInsufficientCash
	}
	remaining := new(big.Int).Sub(sheet.Cash, amount)
	if remaining.Cmp(sheet.Revenue) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	if err := e.debitVault(asset, amount, ErrInsufficientCash); err != nil {
		return nil, err
	}
	sheet.Cash = remaining
	sheet.Debt = new(big.Int).Add(sheet.Debt, amount)
	if err := e.state.PutBalanceSheet(asset, sheet); err != nil {
		return nil, err
	}
	return &Balance{asset: asset, amount: new(big.Int).Set(amount)}, nil
}

// Repay returns borrowed funds to the reserve. Repayment beyond the
// outstanding debt is recognised as protocol revenue. Repay always accepts.
func (e *Engine) Repay(payment *Balance) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if payment == nil {
		return ErrNilBalance
	}
	asset := payment.Asset()
	sheet, err := e.ensureSheet(asset)
	if err != nil {
		return err
	}
	amount, err := payment.consume()
	if err != nil {
		return err
	}
	if sheet.Debt.Cmp(amount) >= 0 {
		sheet.Debt = new(big.Int).Sub(sheet.Debt, amount)
	} else {
		excess := new(big.Int).Sub(amount, sheet.Debt)
		sheet.Revenue = new(big.Int).Add(sheet.Revenue, excess)
		sheet.Debt = big.NewInt(0)
	}
	sheet.Cash = new(big.Int).Add(sheet.Cash, amount)
	if err := e.creditVault(asset, amount); err != nil {
		return err
	}
	return e.state.PutBalanceSheet(asset, sheet)
}

// DepositBorrowFee merges an origination fee into the asset's borrow-fee
// vault, creating the pool on first use. The pool is deliberately outside
// the cash/revenue accounting.
func (e *Engine) DepositBorrowFee(payment *Balance) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if payment == nil {
		return ErrNilBalance
	}
	asset := payment.Asset()
	if _, err := e.ensureSheet(asset); err != nil {
		return err
	}
	amount, err := payment.consume()
	if err != nil {
		return err
	}
	pool, ok, err := e.state.GetFeeVault(asset)
	if err != nil {
		return err
	}
	if !ok {
		pool = big.NewInt(0)
	}
	return e.state.PutFeeVault(asset, new(big.Int).Add(pool, amount))
}

// WithdrawBorrowFee splits the requested amount out of the borrow-fee
// vault. The caller must present the authority capability.
func (e *Engine) WithdrawBorrowFee(cap nativecommon.Capability, asset string, amount *big.Int) (*Balance, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !e.authority.Valid() || !cap.Equals(e.authority) {
		return nil, ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset = normalizeAsset(asset)
	if _, err := e.ensureSheet(asset); err != nil {
		return nil, err
	}
	pool, ok, err := e.state.GetFeeVault(asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFeeVaultNotFound
	}
	if pool.Cmp(amount) < 0 {
		return nil, ErrFeeVaultUnderflow
	}
	if err := e.state.PutFeeVault(asset, new(big.Int).Sub(pool, amount)); err != nil {
		return nil, err
	}
	return &Balance{asset: asset, amount: new(big.Int).Set(amount)}, nil
}

// SetFlashLoanFee updates the per-asset flash-loan fee rate in basis
// points. The caller must present the authority capability.
func (e *Engine) SetFlashLoanFee(cap nativecommon.Capability, asset string, bps uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.authority.Valid() || !cap.Equals(e.authority) {
		return ErrUnauthorized
	}
	if bps > maxFeeRateBps {
		return ErrInvalidFeeRate
	}
	asset = normalizeAsset(asset)
	if _, err := e.ensureSheet(asset); err != nil {
		return err
	}
	return e.state.PutFlashFeeRate(asset, bps)
}

// refreshPrice applies the shared price-update rule: with outstanding
// receipts the price becomes (cash + debt - revenue) / supply and must not
// decrease; with no receipts it resets to one. The new price is persisted.
func (e *Engine) refreshPrice(asset string, sheet *BalanceSheet) (*big.Rat, error) {
	stored, err := e.state.GetPrice(asset)
	if err != nil {
		return nil, err
	}
	if sheet.ReceiptSupply.Sign() == 0 {
		price := cloneRat(oneRat)
		if err := e.state.PutPrice(asset, price); err != nil {
			return nil, err
		}
		return price, nil
	}
	candidate := new(big.Rat).SetFrac(sheet.TotalValue(), sheet.ReceiptSupply)
	if stored != nil && candidate.Cmp(stored) < 0 {
		return nil, ErrPriceRegression
	}
	if err := e.state.PutPrice(asset, candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

func (e *Engine) ensureSheet(asset string) (*BalanceSheet, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	asset = normalizeAsset(asset)
	if asset == "" {
		return nil, ErrUnregisteredAsset
	}
	sheet, err := e.state.GetBalanceSheet(asset)
	if err != nil {
		return nil, err
	}
	if sheet == nil {
		return nil, ErrUnregisteredAsset
	}
	if sheet.Cash == nil {
		sheet.Cash = big.NewInt(0)
	}
	if sheet.Debt == nil {
		sheet.Debt = big.NewInt(0)
	}
	if sheet.Revenue == nil {
		sheet.Revenue = big.NewInt(0)
	}
	if sheet.ReceiptSupply == nil {
		sheet.ReceiptSupply = big.NewInt(0)
	}
	return sheet, nil
}

func (e *Engine) creditVault(asset string, amount *big.Int) error {
	pool, err := e.state.GetVault(asset)
	if err != nil {
		return err
	}
	return e.state.PutVault(asset, new(big.Int).Add(pool, amount))
}

func (e *Engine) debitVault(asset string, amount *big.Int, shortfall error) error {
	pool, err := e.state.GetVault(asset)
	if err != nil {
		return err
	}
	if pool.Cmp(amount) < 0 {
		return shortfall
	}
	return e.state.PutVault(asset, new(big.Int).Sub(pool, amount))
}
