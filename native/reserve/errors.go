package reserve

import "errors"

var (
	// ErrNilState is returned when an engine is used before persistence is wired.
	ErrNilState = errors.New("reserve engine: state not configured")
	// ErrInvalidAmount rejects non-positive amounts at the operation boundary.
	ErrInvalidAmount = errors.New("reserve engine: amount must be positive")
	// ErrInvalidRate rejects negative growth or revenue-factor rates.
	ErrInvalidRate = errors.New("reserve engine: rate must not be negative")
	// ErrInvalidFeeRate rejects flash-loan fee rates above 10000 basis points.
	ErrInvalidFeeRate = errors.New("reserve engine: fee rate exceeds 10000 basis points")
	// ErrAlreadyRegistered signals a duplicate asset registration.
	ErrAlreadyRegistered = errors.New("reserve engine: asset already registered")
	// ErrUnregisteredAsset signals an operation against an unknown asset.
	ErrUnregisteredAsset = errors.New("reserve engine: asset not registered")
	// ErrAssetMismatch signals a balance denominated in a different asset.
	ErrAssetMismatch = errors.New("reserve engine: balance denominated in a different asset")
	// ErrInsufficientCash signals a borrow exceeding available cash.
	ErrInsufficientCash = errors.New("reserve engine: insufficient cash")
	// ErrInsufficientLiquidity signals that cash would fall below the
	// protocol revenue claim.
	ErrInsufficientLiquidity = errors.New("reserve engine: cash would fall below protocol revenue")
	// ErrAmountTooSmall signals a mint or redeem that converts to zero units.
	ErrAmountTooSmall = errors.New("reserve engine: amount converts to zero units")
	// ErrPriceRegression signals a computed exchange price lower than the
	// stored one. This indicates an accounting bug and is never clamped.
	ErrPriceRegression = errors.New("reserve engine: exchange price would decrease")
	// ErrInsufficientRepayment signals a flash-loan settlement below
	// principal plus fee.
	ErrInsufficientRepayment = errors.New("reserve engine: repayment below principal plus fee")
	// ErrFeeVaultNotFound signals a withdrawal from a borrow-fee vault that
	// was never deposited into.
	ErrFeeVaultNotFound = errors.New("reserve engine: borrow-fee vault not initialised")
	// ErrFeeVaultUnderflow signals a borrow-fee withdrawal exceeding the held amount.
	ErrFeeVaultUnderflow = errors.New("reserve engine: borrow-fee withdrawal exceeds held amount")
	// ErrLoanAlreadySettled signals a second settlement of the same obligation.
	ErrLoanAlreadySettled = errors.New("reserve engine: flash loan already settled")
	// ErrNilBalance signals a missing balance argument.
	ErrNilBalance = errors.New("reserve engine: nil balance")
	// ErrBalanceSpent signals reuse of an already-consumed balance.
	ErrBalanceSpent = errors.New("reserve engine: balance already spent")
	// ErrUnauthorized signals a privileged operation without the authority capability.
	ErrUnauthorized = errors.New("reserve engine: capability required")
)
