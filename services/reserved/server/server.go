package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openreserve/core/state"
	nativecommon "openreserve/native/common"
	"openreserve/native/reserve"
	"openreserve/observability/metrics"
	"openreserve/services/reserved/config"
)

const requestBodyLimit = 1 << 20 // 1 MiB

// Server exposes the reserve ledger over HTTP/JSON. Every mutating request
// runs inside a staged state transaction: a failure anywhere in the
// operation discards all of its writes. Requests are serialised; the ledger
// relies on that for its single-writer execution model.
type Server struct {
	logger    *slog.Logger
	ledger    *reserve.Engine
	state     *state.Manager
	auth      *authenticator
	limiter   *rateLimiter
	authority nativecommon.Capability
	metrics   *metrics.ReserveMetrics

	mu sync.Mutex
}

// New assembles a server around the ledger engine. The authority capability
// is presented to the engine on behalf of callers holding an admin token.
func New(logger *slog.Logger, ledger *reserve.Engine, st *state.Manager, authority nativecommon.Capability, cfg config.Config) *Server {
	return &Server{
		logger:    logger,
		ledger:    ledger,
		state:     st,
		auth:      newAuthenticator(logger, cfg.Auth),
		limiter:   newRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
		authority: authority,
		metrics:   metrics.Reserve(),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logRequests(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/reserve/assets/{asset}", func(ar chi.Router) {
		ar.Use(s.limiter.Middleware)
		ar.Use(s.auth.Middleware(false))

		ar.Post("/", s.registerAsset)
		ar.Get("/", s.getBalanceSheet)
		ar.Get("/price", s.getPrice)
		ar.Get("/flash-fee", s.getFlashFee)
		ar.Get("/borrow-fees", s.getBorrowFees)
		ar.Post("/accrue", s.accrueInterest)
		ar.Post("/mint", s.mint)
		ar.Post("/redeem", s.redeem)
		ar.Post("/borrow", s.borrow)
		ar.Post("/repay", s.repay)
		ar.Post("/flash-loan", s.flashLoan)
		ar.Post("/borrow-fees/deposit", s.depositBorrowFee)

		ar.Group(func(pr chi.Router) {
			pr.Use(s.auth.Middleware(true))
			pr.Post("/borrow-fees/withdraw", s.withdrawBorrowFee)
			pr.Put("/flash-fee", s.setFlashFee)
		})
	})
	return r
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type accrueRequest struct {
	GrowthRate    string `json:"growthRate"`
	RevenueFactor string `json:"revenueFactor"`
}

type flashLoanRequest struct {
	Amount              string `json:"amount"`
	Repayment           string `json:"repayment"`
	DiscountNumerator   uint64 `json:"discountNumerator"`
	DiscountDenominator uint64 `json:"discountDenominator"`
}

type flashFeeRequest struct {
	FeeRateBps uint64 `json:"feeRateBps"`
}

type balanceSheetResponse struct {
	Asset         string `json:"asset"`
	Cash          string `json:"cash"`
	Debt          string `json:"debt"`
	Revenue       string `json:"revenue"`
	ReceiptSupply string `json:"receiptSupply"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

type priceResponse struct {
	Price string `json:"price"`
}

type flashFeeResponse struct {
	FeeRateBps uint64 `json:"feeRateBps"`
}

type flashLoanResponse struct {
	Fee       string `json:"fee"`
	Collected string `json:"collected"`
}

func (s *Server) registerAsset(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	err := s.transact("register_asset", func() error {
		return s.ledger.RegisterAsset(asset)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"asset": asset})
}

func (s *Server) getBalanceSheet(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	s.mu.Lock()
	sheet, err := s.ledger.BalanceSheet(asset)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceSheetResponse{
		Asset:         asset,
		Cash:          sheet.Cash.String(),
		Debt:          sheet.Debt.String(),
		Revenue:       sheet.Revenue.String(),
		ReceiptSupply: sheet.ReceiptSupply.String(),
	})
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	s.mu.Lock()
	price, err := s.ledger.Price(asset)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.SetExchangePrice(asset, price)
	writeJSON(w, http.StatusOK, priceResponse{Price: price.RatString()})
}

func (s *Server) getFlashFee(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	s.mu.Lock()
	bps, err := s.ledger.FlashFeeRate(asset)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flashFeeResponse{FeeRateBps: bps})
}

func (s *Server) getBorrowFees(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	s.mu.Lock()
	pool, err := s.ledger.FeeVaultBalance(asset)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: pool.String()})
}

func (s *Server) accrueInterest(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	var req accrueRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", reserve.ErrInvalidRate, err))
		return
	}
	growth, err := parseRat(req.GrowthRate)
	if err != nil {
		writeError(w, reserve.ErrInvalidRate)
		return
	}
	factor, err := parseRat(req.RevenueFactor)
	if err != nil {
		writeError(w, reserve.ErrInvalidRate)
		return
	}
	err = s.transact("accrue_interest", func() error {
		return s.ledger.AccrueInterest(asset, growth, factor)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": asset})
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	amount, err := decodeAmount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var receipts *big.Int
	err = s.transact("mint", func() error {
		minted, err := s.ledger.Mint(reserve.NewBalance(asset, amount))
		if err != nil {
			return err
		}
		receipts = minted
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordSheetMetrics(asset)
	writeJSON(w, http.StatusOK, amountResponse{Amount: receipts.String()})
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	receipts, err := decodeAmount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var released *big.Int
	err = s.transact("redeem", func() error {
		// The released balance is handed outward to the caller; the host
		// moving the actual funds is outside this boundary.
		balance, err := s.ledger.Redeem(asset, receipts)
		if err != nil {
			return err
		}
		released = balance.Amount()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.recordSheetMetrics(asset)
	writeJSON(w, http.StatusOK, amountResponse{Amount: released.String()})
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	amount, err := decodeAmount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var released *big.Int
	err = s.transact("borrow", func() error {
		balance, err := s.ledger.Borrow(asset, amount)
		if err != nil {
			return err
		}
		released = balance.Amount()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: released.String()})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	amount, err := decodeAmount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.transact("repay", func() error {
		return s.ledger.Repay(reserve.NewBalance(asset, amount))
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": asset})
}

func (s *Server) flashLoan(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	var req flashLoanRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", reserve.ErrInvalidAmount, err))
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, reserve.ErrInvalidAmount)
		return
	}
	repayment, err := parseAmount(req.Repayment)
	if err != nil {
		writeError(w, reserve.ErrInvalidAmount)
		return
	}

	var loan *reserve.FlashLoan
	var collected *big.Int
	err = s.transact("flash_loan", func() error {
		// Issue and settlement happen within one request: the obligation
		// cannot outlive the atomic call sequence that created it.
		principal, issued, err := s.ledger.IssueFlashLoan(asset, amount, req.DiscountNumerator, req.DiscountDenominator)
		if err != nil {
			return err
		}
		loan = issued
		_ = principal // handed to the caller for the duration of the request
		if err := s.ledger.SettleFlashLoan(reserve.NewBalance(asset, repayment), loan); err != nil {
			return err
		}
		collected = new(big.Int).Sub(repayment, loan.Amount())
		return nil
	})
	if err != nil {
		if loan != nil && !loan.Settled() {
			s.ledger.AbandonFlashLoan(loan)
		}
		s.metrics.SetOutstandingFlashLoans(s.ledger.OutstandingLoans())
		writeError(w, err)
		return
	}
	s.metrics.RecordFlashLoanFee(asset, collected)
	s.metrics.SetOutstandingFlashLoans(s.ledger.OutstandingLoans())
	writeJSON(w, http.StatusOK, flashLoanResponse{
		Fee:       loan.Fee().String(),
		Collected: collected.String(),
	})
}

func (s *Server) depositBorrowFee(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	amount, err := decodeAmount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	err = s.transact("deposit_borrow_fee", func() error {
		return s.ledger.DepositBorrowFee(reserve.NewBalance(asset, amount))
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"asset": asset})
}

func (s *Server) withdrawBorrowFee(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	amount, err := decodeAmount(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var released *big.Int
	err = s.transact("withdraw_borrow_fee", func() error {
		balance, err := s.ledger.WithdrawBorrowFee(s.authority, asset, amount)
		if err != nil {
			return err
		}
		released = balance.Amount()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: released.String()})
}

func (s *Server) setFlashFee(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	var req flashFeeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", reserve.ErrInvalidFeeRate, err))
		return
	}
	err := s.transact("set_flash_loan_fee", func() error {
		return s.ledger.SetFlashLoanFee(s.authority, asset, req.FeeRateBps)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flashFeeResponse{FeeRateBps: req.FeeRateBps})
}

// transact serialises the operation and stages its writes; a failure
// discards every staged write, leaving no partial state change.
func (s *Server) transact(op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.state.WithTransaction(func() error {
		if err := fn(); err != nil {
			return err
		}
		if n := s.ledger.OutstandingLoans(); n != 0 {
			return fmt.Errorf("reserve engine: %d unsettled flash loans at commit", n)
		}
		return nil
	})
	s.metrics.RecordOperation(op, err)
	if err != nil {
		s.logger.Warn("operation failed", slog.String("op", op), slog.String("error", err.Error()))
	}
	return err
}

func (s *Server) recordSheetMetrics(asset string) {
	s.mu.Lock()
	sheet, err := s.ledger.BalanceSheet(asset)
	s.mu.Unlock()
	if err != nil {
		return
	}
	s.metrics.SetReceiptSupply(asset, sheet.ReceiptSupply)
}

func decodeRequest(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, requestBodyLimit))
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func decodeAmount(r *http.Request) (*big.Int, error) {
	var req amountRequest
	if err := decodeRequest(r, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", reserve.ErrInvalidAmount, err)
	}
	return parseAmount(req.Amount)
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, reserve.ErrInvalidAmount
	}
	return amount, nil
}

func parseRat(raw string) (*big.Rat, error) {
	if raw == "" {
		return new(big.Rat), nil
	}
	rate, ok := new(big.Rat).SetString(raw)
	if !ok {
		return nil, reserve.ErrInvalidRate
	}
	return rate, nil
}
