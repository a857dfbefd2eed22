package routes

import (
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"cdpchain/core/events"
	cdpstate "cdpchain/core/state"
	"cdpchain/crypto"
	"cdpchain/gateway/middleware"
	"cdpchain/native/cdp"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
)

// cdpRoutes exposes the engine over JSON. Amounts travel as base-10 strings.
type cdpRoutes struct {
	engine *cdp.Engine
	feed   *oracle.Feed
	ledger *token.Ledger
	state  *cdpstate.Manager
	access cdp.RoleAccess
	events *events.Recorder
	logger *slog.Logger
}

func (cr *cdpRoutes) mountViews(r chi.Router) {
	r.Get("/collaterals", cr.listCollaterals)
	r.Get("/collaterals/{type}", cr.getCollateral)
	r.Get("/vaults", cr.findVault)
	r.Get("/vaults/{id}", cr.getVault)
	r.Get("/income", cr.getIncome)
	r.Get("/payees", cr.getPayees)
	r.Get("/debt", cr.getDebt)
	r.Get("/insurance", cr.getInsurance)
	r.Get("/prices", cr.listPrices)
	r.Get("/events", cr.listEvents)
}

func (cr *cdpRoutes) mountWrites(r chi.Router) {
	r.Post("/deposit", cr.deposit)
	r.Post("/withdraw", cr.withdraw)
	r.Post("/borrow", cr.borrow)
	r.Post("/deposit-and-borrow", cr.depositAndBorrow)
	r.Post("/repay", cr.repay)
	r.Post("/repay-all", cr.repayAll)
	r.Post("/liquidate", cr.liquidate)
	r.Post("/liquidate-partial", cr.liquidatePartial)
	r.Post("/refresh", cr.refresh)
	r.Post("/release", cr.release)
}

func (cr *cdpRoutes) mountAdmin(r chi.Router) {
	r.Put("/collaterals", cr.setCollateral)
	r.Post("/collaterals/{type}/{param}", cr.setCollateralParam)
	r.Post("/payees", cr.changePayees)
	r.Post("/prices", cr.setPrice)
}

type collateralResponse struct {
	ID                 uint64 `json:"id"`
	CollateralType     string `json:"collateralType"`
	DebtLimit          string `json:"debtLimit"`
	LiquidationRatio   string `json:"liquidationRatio"`
	MinCollateralRatio string `json:"minCollateralRatio"`
	BorrowRate         string `json:"borrowRate"`
	AnnualBorrowRate   string `json:"annualBorrowRate"`
	OriginationFee     string `json:"originationFee"`
	LiquidationBonus   string `json:"liquidationBonus"`
	LiquidationFee     string `json:"liquidationFee"`
	CumulativeRate     string `json:"cumulativeRate,omitempty"`
	LastRefresh        uint64 `json:"lastRefresh,omitempty"`
	TotalDebt          string `json:"totalDebt,omitempty"`
}

func (cr *cdpRoutes) collateralView(cfg *cdp.CollateralConfig) (collateralResponse, error) {
	resp := collateralResponse{
		ID:                 cfg.ID,
		CollateralType:     cfg.CollateralType,
		DebtLimit:          amountString(cfg.DebtLimit),
		LiquidationRatio:   amountString(cfg.LiquidationRatio),
		MinCollateralRatio: amountString(cfg.MinCollateralRatio),
		BorrowRate:         amountString(cfg.BorrowRate),
		OriginationFee:     amountString(cfg.OriginationFee),
		LiquidationBonus:   amountString(cfg.LiquidationBonus),
		LiquidationFee:     amountString(cfg.LiquidationFee),
	}
	if cfg.BorrowRate != nil {
		resp.AnnualBorrowRate = cdp.AnnualizedRate(cfg.BorrowRate).String()
	}
	rate, err := cr.engine.RateState(cfg.CollateralType)
	if err != nil {
		return resp, err
	}
	resp.CumulativeRate = amountString(rate.CumulativeRate)
	resp.LastRefresh = rate.LastRefresh
	debt, err := cr.engine.CollateralDebt(cfg.CollateralType)
	if err != nil {
		return resp, err
	}
	resp.TotalDebt = amountString(debt)
	return resp, nil
}

func (cr *cdpRoutes) listCollaterals(w http.ResponseWriter, r *http.Request) {
	configs, err := cr.engine.CollateralConfigs()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	out := make([]collateralResponse, 0, len(configs))
	for _, cfg := range configs {
		view, err := cr.collateralView(cfg)
		if err != nil {
			cr.writeEngineError(w, err)
			return
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"collaterals": out})
}

func (cr *cdpRoutes) getCollateral(w http.ResponseWriter, r *http.Request) {
	cfg, err := cr.engine.CollateralConfig(chi.URLParam(r, "type"))
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	view, err := cr.collateralView(cfg)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type vaultResponse struct {
	ID                uint64 `json:"id"`
	CollateralType    string `json:"collateralType"`
	Owner             string `json:"owner"`
	CollateralBalance string `json:"collateralBalance"`
	BaseDebt          string `json:"baseDebt"`
	Debt              string `json:"debt"`
	Health            string `json:"health,omitempty"`
	State             string `json:"state"`
	CreatedAt         uint64 `json:"createdAt"`
}

func (cr *cdpRoutes) writeVault(w http.ResponseWriter, id uint64) {
	vault, err := cr.engine.Vault(id)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	debt, err := cr.engine.VaultDebt(id)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	resp := vaultResponse{
		ID:                vault.ID,
		CollateralType:    vault.CollateralType,
		Owner:             vault.Owner.Hex(),
		CollateralBalance: amountString(vault.CollateralBalance),
		BaseDebt:          amountString(vault.BaseDebt),
		Debt:              amountString(debt),
		State:             string(vault.State()),
		CreatedAt:         vault.CreatedAt,
	}
	// Health needs a fresh price; the rest of the view is still useful without one.
	if health, err := cr.engine.VaultHealth(id); err == nil {
		resp.Health = amountString(health)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (cr *cdpRoutes) getVault(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, errors.New("vault id must be an unsigned integer"))
		return
	}
	cr.writeVault(w, id)
}

func (cr *cdpRoutes) findVault(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	collateralType := strings.TrimSpace(query.Get("collateralType"))
	if collateralType == "" {
		writeBadRequest(w, errors.New("collateralType is required"))
		return
	}
	owner, err := crypto.ParseAddress(query.Get("owner"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := cr.engine.VaultID(collateralType, owner)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	if id == 0 {
		cr.writeEngineError(w, cdp.ErrVaultNotFound)
		return
	}
	cr.writeVault(w, id)
}

func (cr *cdpRoutes) getIncome(w http.ResponseWriter, r *http.Request) {
	income, err := cr.engine.AvailableIncome()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	last, err := cr.engine.LastReleasedAt()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	configs, err := cr.engine.CollateralConfigs()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	withheld := make(map[string]string, len(configs))
	for _, cfg := range configs {
		fees, err := cr.engine.LiquidationFees(cfg.CollateralType)
		if err != nil {
			cr.writeEngineError(w, err)
			return
		}
		withheld[cfg.CollateralType] = amountString(fees)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"available":       amountString(income),
		"liquidationFees": withheld,
		"lastReleasedAt":  last,
	})
}

type payeeJSON struct {
	Address string `json:"address"`
	Shares  uint64 `json:"shares"`
}

func (cr *cdpRoutes) getPayees(w http.ResponseWriter, r *http.Request) {
	table, err := cr.engine.Payees()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	out := make([]payeeJSON, 0, len(table))
	var total uint64
	for _, payee := range table {
		out = append(out, payeeJSON{Address: payee.Address.Hex(), Shares: payee.Shares})
		total += payee.Shares
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payees": out, "totalShares": total})
}

func (cr *cdpRoutes) getDebt(w http.ResponseWriter, r *http.Request) {
	total, err := cr.engine.TotalDebt()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	configs, err := cr.engine.CollateralConfigs()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	byCollateral := make(map[string]string, len(configs))
	for _, cfg := range configs {
		debt, err := cr.engine.CollateralDebt(cfg.CollateralType)
		if err != nil {
			cr.writeEngineError(w, err)
			return
		}
		byCollateral[cfg.CollateralType] = amountString(debt)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"total": amountString(total), "byCollateral": byCollateral})
}

func (cr *cdpRoutes) getInsurance(w http.ResponseWriter, r *http.Request) {
	balance, err := cr.engine.InsuranceBalance()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": amountString(balance)})
}

type priceJSON struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	UpdatedAt int64  `json:"updatedAt"`
	Source    string `json:"source,omitempty"`
}

func (cr *cdpRoutes) listPrices(w http.ResponseWriter, r *http.Request) {
	quotes := cr.feed.Quotes()
	out := make([]priceJSON, 0, len(quotes))
	for symbol, quote := range quotes {
		out = append(out, priceJSON{Symbol: symbol, Price: amountString(quote.Price), UpdatedAt: quote.UpdatedAt.Unix(), Source: quote.Source})
	}
	sortPrices(out)
	writeJSON(w, http.StatusOK, map[string]interface{}{"prices": out})
}

func (cr *cdpRoutes) listEvents(w http.ResponseWriter, r *http.Request) {
	var recorded interface{}
	if eventType := strings.TrimSpace(r.URL.Query().Get("type")); eventType != "" {
		recorded = cr.events.OfType(eventType)
	} else {
		recorded = cr.events.Events()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": recorded})
}

type depositRequest struct {
	CollateralType string `json:"collateralType"`
	VaultID        uint64 `json:"vaultId"`
	Amount         string `json:"amount"`
}

func (cr *cdpRoutes) deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id := req.VaultID
	switch {
	case id != 0 && strings.TrimSpace(req.CollateralType) != "":
		writeBadRequest(w, errors.New("set either vaultId or collateralType"))
		return
	case id != 0:
		err = cr.engine.DepositByVaultID(caller, id, amount)
	default:
		id, err = cr.engine.Deposit(caller, req.CollateralType, amount)
	}
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"vaultId": id})
}

type vaultAmountRequest struct {
	VaultID uint64 `json:"vaultId"`
	Amount  string `json:"amount"`
}

// decodeVaultAmount reads a vault id and amount. The amount is optional when
// required is false.
func decodeVaultAmount(w http.ResponseWriter, r *http.Request, required bool) (uint64, *big.Int, bool) {
	var req vaultAmountRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return 0, nil, false
	}
	if req.VaultID == 0 {
		writeBadRequest(w, errors.New("vaultId is required"))
		return 0, nil, false
	}
	if !required {
		return req.VaultID, nil, true
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return 0, nil, false
	}
	return req.VaultID, amount, true
}

func (cr *cdpRoutes) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, amount, ok := decodeVaultAmount(w, r, true)
	if !ok {
		return
	}
	if err := cr.engine.Withdraw(caller, id, amount); err != nil {
		cr.writeEngineError(w, err)
		return
	}
	cr.writeVault(w, id)
}

func (cr *cdpRoutes) borrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, amount, ok := decodeVaultAmount(w, r, true)
	if !ok {
		return
	}
	if err := cr.engine.Borrow(caller, id, amount); err != nil {
		cr.writeEngineError(w, err)
		return
	}
	cr.writeVault(w, id)
}

type depositAndBorrowRequest struct {
	CollateralType string `json:"collateralType"`
	DepositAmount  string `json:"depositAmount"`
	BorrowAmount   string `json:"borrowAmount"`
}

func (cr *cdpRoutes) depositAndBorrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req depositAndBorrowRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	depositAmount, err := parseAmount("depositAmount", req.DepositAmount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	borrowAmount, err := parseAmount("borrowAmount", req.BorrowAmount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := cr.engine.DepositAndBorrow(caller, req.CollateralType, depositAmount, borrowAmount)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	cr.writeVault(w, id)
}

func (cr *cdpRoutes) repay(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, amount, ok := decodeVaultAmount(w, r, true)
	if !ok {
		return
	}
	repaid, err := cr.engine.Repay(caller, id, amount)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"repaid": amountString(repaid)})
}

func (cr *cdpRoutes) repayAll(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, _, ok := decodeVaultAmount(w, r, false)
	if !ok {
		return
	}
	repaid, err := cr.engine.RepayAll(caller, id)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"repaid": amountString(repaid)})
}

type liquidationResponse struct {
	VaultID                uint64 `json:"vaultId"`
	DebtRepaid             string `json:"debtRepaid"`
	CollateralLiquidated   string `json:"collateralLiquidated"`
	InsuranceAmount        string `json:"insuranceAmount"`
	LiquidatorPaid         string `json:"liquidatorPaid"`
	CollateralToLiquidator string `json:"collateralToLiquidator"`
	CollateralFee          string `json:"collateralFee"`
}

func writeLiquidation(w http.ResponseWriter, result *cdp.LiquidationResult) {
	writeJSON(w, http.StatusOK, liquidationResponse{
		VaultID:                result.VaultID,
		DebtRepaid:             amountString(result.DebtRepaid),
		CollateralLiquidated:   amountString(result.CollateralLiquidated),
		InsuranceAmount:        amountString(result.InsuranceAmount),
		LiquidatorPaid:         amountString(result.LiquidatorPaid),
		CollateralToLiquidator: amountString(result.CollateralToLiquidator),
		CollateralFee:          amountString(result.CollateralFee),
	})
}

func (cr *cdpRoutes) liquidate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, _, ok := decodeVaultAmount(w, r, false)
	if !ok {
		return
	}
	result, err := cr.engine.Liquidate(caller, id)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeLiquidation(w, result)
}

func (cr *cdpRoutes) liquidatePartial(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, amount, ok := decodeVaultAmount(w, r, true)
	if !ok {
		return
	}
	result, err := cr.engine.LiquidatePartial(caller, id, amount)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeLiquidation(w, result)
}

type refreshRequest struct {
	CollateralType string `json:"collateralType"`
}

func (cr *cdpRoutes) refresh(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCaller(w, r); !ok {
		return
	}
	var req refreshRequest
	if err := decodeOptionalRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	var err error
	if strings.TrimSpace(req.CollateralType) == "" {
		err = cr.engine.RefreshAll()
	} else {
		err = cr.engine.Refresh(req.CollateralType)
	}
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	rates, err := cr.engine.CumulativeRates()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	out := make(map[string]string, len(rates))
	for collateralType, rate := range rates {
		out[collateralType] = amountString(rate)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cumulativeRates": out})
}

func (cr *cdpRoutes) release(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCaller(w, r); !ok {
		return
	}
	minted, err := cr.engine.Release()
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"released": amountString(minted)})
}

type collateralRequest struct {
	CollateralType     string `json:"collateralType"`
	DebtLimit          string `json:"debtLimit"`
	LiquidationRatio   string `json:"liquidationRatio"`
	MinCollateralRatio string `json:"minCollateralRatio"`
	BorrowRate         string `json:"borrowRate"`
	OriginationFee     string `json:"originationFee"`
	LiquidationBonus   string `json:"liquidationBonus"`
	LiquidationFee     string `json:"liquidationFee"`
}

func (req collateralRequest) config() (*cdp.CollateralConfig, error) {
	cfg := &cdp.CollateralConfig{CollateralType: req.CollateralType}
	fields := []struct {
		name  string
		raw   string
		into  **big.Int
		empty *big.Int
	}{
		{"debtLimit", req.DebtLimit, &cfg.DebtLimit, nil},
		{"liquidationRatio", req.LiquidationRatio, &cfg.LiquidationRatio, nil},
		{"minCollateralRatio", req.MinCollateralRatio, &cfg.MinCollateralRatio, nil},
		{"borrowRate", req.BorrowRate, &cfg.BorrowRate, cdp.RAY},
		{"originationFee", req.OriginationFee, &cfg.OriginationFee, big.NewInt(0)},
		{"liquidationBonus", req.LiquidationBonus, &cfg.LiquidationBonus, big.NewInt(0)},
		{"liquidationFee", req.LiquidationFee, &cfg.LiquidationFee, big.NewInt(0)},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.raw) == "" && field.empty != nil {
			*field.into = new(big.Int).Set(field.empty)
			continue
		}
		value, err := parseAmount(field.name, field.raw)
		if err != nil {
			return nil, err
		}
		*field.into = value
	}
	return cfg, nil
}

func (cr *cdpRoutes) setCollateral(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req collateralRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	cfg, err := req.config()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	stored, err := cr.engine.SetCollateralConfig(caller, cfg)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	view, err := cr.collateralView(stored)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type paramSetter func(caller common.Address, collateralType string, value *big.Int) error

func (cr *cdpRoutes) paramSetters() map[string]paramSetter {
	return map[string]paramSetter{
		"debt-limit":           cr.engine.SetCollateralDebtLimit,
		"liquidation-ratio":    cr.engine.SetCollateralLiquidationRatio,
		"min-collateral-ratio": cr.engine.SetCollateralMinCollateralRatio,
		"borrow-rate":          cr.engine.SetCollateralBorrowRate,
		"origination-fee":      cr.engine.SetCollateralOriginationFee,
		"liquidation-bonus":    cr.engine.SetCollateralLiquidationBonus,
		"liquidation-fee":      cr.engine.SetCollateralLiquidationFee,
	}
}

type valueRequest struct {
	Value string `json:"value"`
}

func (cr *cdpRoutes) setCollateralParam(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	setter, found := cr.paramSetters()[chi.URLParam(r, "param")]
	if !found {
		writeJSONError(w, http.StatusNotFound, errors.New("unknown collateral parameter"))
		return
	}
	var req valueRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	collateralType := chi.URLParam(r, "type")
	if err := setter(caller, collateralType, value); err != nil {
		cr.writeEngineError(w, err)
		return
	}
	cfg, err := cr.engine.CollateralConfig(collateralType)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	view, err := cr.collateralView(cfg)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type changePayeesRequest struct {
	Payees []payeeJSON `json:"payees"`
}

func (cr *cdpRoutes) changePayees(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req changePayeesRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	addrs := make([]common.Address, len(req.Payees))
	shares := make([]uint64, len(req.Payees))
	for i, payee := range req.Payees {
		addr, err := crypto.ParseAddress(payee.Address)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		addrs[i] = addr
		shares[i] = payee.Shares
	}
	if err := cr.engine.ChangePayees(caller, addrs, shares); err != nil {
		cr.writeEngineError(w, err)
		return
	}
	cr.getPayees(w, r)
}

type setPriceRequest struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Source string `json:"source"`
}

func (cr *cdpRoutes) setPrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if !cr.access.IsManager(caller) {
		cr.writeEngineError(w, cdp.ErrNotManager)
		return
	}
	var req setPriceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	source := req.Source
	if source == "" {
		source = caller.Hex()
	}
	if err := cr.feed.SetPrice(req.Symbol, price, source); err != nil {
		cr.writeEngineError(w, err)
		return
	}
	cr.logger.Info("oracle price set",
		slog.String("symbol", strings.ToUpper(strings.TrimSpace(req.Symbol))),
		slog.String("price", price.String()),
		slog.String("caller", caller.Hex()))
	cr.listPrices(w, r)
}

func (cr *cdpRoutes) balance(w http.ResponseWriter, r *http.Request) {
	holder, err := crypto.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	balance, err := cr.ledger.BalanceOf(chi.URLParam(r, "symbol"), holder)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": amountString(balance)})
}

func (cr *cdpRoutes) allowance(w http.ResponseWriter, r *http.Request) {
	owner, err := crypto.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	spender, err := crypto.ParseAddress(chi.URLParam(r, "spender"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	allowance, err := cr.ledger.Allowance(chi.URLParam(r, "symbol"), owner, spender)
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"allowance": amountString(allowance)})
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// approve sets the caller's allowance. An empty spender approves the CDP
// module account.
func (cr *cdpRoutes) approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	spender := cr.engine.ModuleAddress()
	if strings.TrimSpace(req.Spender) != "" {
		parsed, err := crypto.ParseAddress(req.Spender)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		spender = parsed
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	symbol := chi.URLParam(r, "symbol")
	err = cr.state.Update(func() error {
		return cr.ledger.Approve(symbol, caller, spender, amount)
	})
	if err != nil {
		cr.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":     caller.Hex(),
		"spender":   spender.Hex(),
		"allowance": amountString(amount),
	})
}

func requireCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok || caller == (common.Address{}) {
		writeJSONError(w, http.StatusUnauthorized, errors.New("caller account required"))
		return common.Address{}, false
	}
	return caller, true
}
