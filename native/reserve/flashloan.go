package reserve

import (
	"math/big"

	nativecommon "openreserve/native/common"
)

// IssueFlashLoan withdraws the principal from the vault and returns it
// together with the obligation that must be settled before the enclosing
// transaction commits. The principal is not debt: no balance-sheet change
// happens here. A strictly positive minimum fee applies whenever a fee rate
// is configured, so micro-loans cannot dodge the fee entirely. The optional
// discount fraction reduces the base fee.
func (e *Engine) IssueFlashLoan(asset string, amount *big.Int, discountNum, discountDen uint64) (*Balance, *FlashLoan, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	asset = normalizeAsset(asset)
	if _, err := e.ensureSheet(asset); err != nil {
		return nil, nil, err
	}
	feeRate, err := e.state.GetFlashFeeRate(asset)
	if err != nil {
		return nil, nil, err
	}

	baseFee := big.NewInt(0)
	if feeRate > 0 {
		baseFee = bpsShare(amount, feeRate)
		baseFee.Add(baseFee, big.NewInt(1))
	}
	discount := fracShare(baseFee, discountNum, discountDen)
	fee := new(big.Int).Sub(baseFee, discount)

	if err := e.debitVault(asset, amount, ErrInsufficientCash); err != nil {
		return nil, nil, err
	}

	loan := &FlashLoan{
		asset:  asset,
		amount: new(big.Int).Set(amount),
		fee:    fee,
	}
	e.outstanding++
	return &Balance{asset: asset, amount: new(big.Int).Set(amount)}, loan, nil
}

// SettleFlashLoan consumes the obligation against the repayment. The whole
// collected fee (any repayment beyond the principal) is recognised as both
// cash and revenue, preserving the cash >= revenue invariant.
func (e *Engine) SettleFlashLoan(repayment *Balance, loan *FlashLoan) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if loan == nil || repayment == nil {
		return ErrNilBalance
	}
	if loan.settled {
		return ErrLoanAlreadySettled
	}
	if repayment.Asset() != loan.asset {
		return ErrAssetMismatch
	}
	owed := new(big.Int).Add(loan.amount, loan.fee)
	if repayment.Amount().Cmp(owed) < 0 {
		return ErrInsufficientRepayment
	}
	sheet, err := e.ensureSheet(loan.asset)
	if err != nil {
		return err
	}
	amount, err := repayment.consume()
	if err != nil {
		return err
	}
	collected := new(big.Int).Sub(amount, loan.amount)
	sheet.Cash = new(big.Int).Add(sheet.Cash, collected)
	sheet.Revenue = new(big.Int).Add(sheet.Revenue, collected)
	if err := e.creditVault(loan.asset, amount); err != nil {
		return err
	}
	if err := e.state.PutBalanceSheet(loan.asset, sheet); err != nil {
		return err
	}
	loan.settled = true
	e.outstanding--
	return nil
}

// AbandonFlashLoan releases an unsettled obligation when the enclosing
// transaction is being discarded. The staged state overlay undoes the vault
// withdrawal; this only reconciles the outstanding counter. It must never
// be called for a transaction that will commit.
func (e *Engine) AbandonFlashLoan(loan *FlashLoan) {
	if e == nil || loan == nil || loan.settled {
		return
	}
	loan.settled = true
	e.outstanding--
}
