package routes

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"cdpchain/core/events"
	cdpstate "cdpchain/core/state"
	"cdpchain/gateway/middleware"
	"cdpchain/native/cdp"
	"cdpchain/native/oracle"
	"cdpchain/native/token"
	"cdpchain/storage"
)

var (
	managerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	moduleAddr     = common.HexToAddress("0x00000000000000000000000000000000000000cd")
	aliceAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	liquidatorAddr = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func wad(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), cdp.WAD)
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	state    *cdpstate.Manager
	ledger   *token.Ledger
	recorder *events.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	st := cdpstate.NewManager(db)
	ledger := token.NewLedger(st)
	require.NoError(t, st.Update(func() error {
		for _, symbol := range []string{"PAR", "WETH"} {
			if err := ledger.Register(symbol, symbol, 18); err != nil {
				return err
			}
		}
		return st.SetRole(cdp.ManagerRole, managerAddr.Bytes())
	}))

	feed := oracle.NewFeed(ledger, 0)
	recorder := events.NewRecorder(0)
	engine := cdp.NewEngine(st, cdp.Config{ModuleAddress: moduleAddr, StableToken: "PAR"})
	engine.SetTokenLedger(token.NewCustody(ledger, moduleAddr))
	engine.SetPriceFeed(feed)
	engine.SetAccessControl(cdp.NewRoleAccess(st))
	engine.SetPauses(st)
	engine.SetEmitter(recorder)
	engine.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })

	handler, err := New(Config{
		Engine:   engine,
		Feed:     feed,
		Ledger:   ledger,
		State:    st,
		Recorder: recorder,
	})
	require.NoError(t, err)
	return &testServer{t: t, handler: handler, state: st, ledger: ledger, recorder: recorder}
}

func (s *testServer) do(method, path string, caller *common.Address, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if caller != nil {
		req.Header.Set(middleware.CallerHeader, caller.Hex())
	}
	res := httptest.NewRecorder()
	s.handler.ServeHTTP(res, req)
	var decoded map[string]interface{}
	if res.Body.Len() > 0 {
		_ = json.Unmarshal(res.Body.Bytes(), &decoded)
	}
	return res.Code, decoded
}

func (s *testServer) mint(symbol string, to common.Address, amount *big.Int) {
	s.t.Helper()
	require.NoError(s.t, s.state.Update(func() error {
		return s.ledger.Mint(symbol, to, amount)
	}))
}

func (s *testServer) configure() {
	s.t.Helper()
	status, body := s.do(http.MethodPut, "/v1/cdp/admin/collaterals", &managerAddr, map[string]string{
		"collateralType":     "weth",
		"debtLimit":          wad(1_000_000).String(),
		"liquidationRatio":   "1300000000000000000",
		"minCollateralRatio": "1500000000000000000",
		"liquidationBonus":   "50000000000000000",
	})
	require.Equal(s.t, http.StatusOK, status, body)
	require.Equal(s.t, "WETH", body["collateralType"])
	require.Equal(s.t, cdp.RAY.String(), body["borrowRate"])

	status, body = s.do(http.MethodPost, "/v1/cdp/admin/prices", &managerAddr, map[string]string{
		"symbol": "WETH",
		"price":  wad(2_000).String(),
	})
	require.Equal(s.t, http.StatusOK, status, body)
}

func (s *testServer) openVault() {
	s.t.Helper()
	s.mint("WETH", aliceAddr, wad(1))
	status, body := s.do(http.MethodPost, "/v1/tokens/WETH/approve", &aliceAddr, map[string]string{"amount": wad(1).String()})
	require.Equal(s.t, http.StatusOK, status, body)
	require.Equal(s.t, moduleAddr.Hex(), body["spender"])

	status, body = s.do(http.MethodPost, "/v1/cdp/deposit-and-borrow", &aliceAddr, map[string]string{
		"collateralType": "WETH",
		"depositAmount":  wad(1).String(),
		"borrowAmount":   wad(1_000).String(),
	})
	require.Equal(s.t, http.StatusOK, status, body)
	require.Equal(s.t, float64(1), body["id"])
	require.Equal(s.t, wad(1_000).String(), body["debt"])
	require.Equal(s.t, string(cdp.VaultBorrowed), body["state"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	s.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEmpty(t, res.Header().Get(middleware.RequestIDHeader))
}

func TestOpenVaultAndViews(t *testing.T) {
	s := newTestServer(t)
	s.configure()
	s.openVault()

	status, body := s.do(http.MethodGet, "/v1/cdp/vaults?collateralType=weth&owner="+aliceAddr.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, aliceAddr.Hex(), body["owner"])
	require.NotEmpty(t, body["health"])

	status, body = s.do(http.MethodGet, "/v1/tokens/PAR/balances/"+aliceAddr.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, wad(1_000).String(), body["balance"])

	status, body = s.do(http.MethodGet, "/v1/cdp/debt", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, wad(1_000).String(), body["total"])

	status, body = s.do(http.MethodGet, "/v1/cdp/collaterals/WETH", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, wad(1_000).String(), body["totalDebt"])

	status, body = s.do(http.MethodGet, "/v1/cdp/events?type="+events.TypeCDPBorrowed, nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["events"], 1)
}

func TestWriteErrorsMapToStatuses(t *testing.T) {
	s := newTestServer(t)
	s.configure()

	status, _ := s.do(http.MethodPost, "/v1/cdp/borrow", nil, map[string]interface{}{"vaultId": 1, "amount": "1"})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodPost, "/v1/cdp/borrow", &aliceAddr, map[string]interface{}{"vaultId": 9, "amount": "1"})
	require.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodPost, "/v1/cdp/deposit", &aliceAddr, map[string]interface{}{"collateralType": "WETH", "amount": "-1"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/v1/cdp/deposit", &aliceAddr, map[string]interface{}{"collateralType": "WETH", "amount": "1", "extra": true})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/v1/cdp/deposit", &aliceAddr, map[string]interface{}{"collateralType": "WETH", "amount": "1"})
	require.Equal(t, http.StatusConflict, status, "deposit without allowance")

	status, _ = s.do(http.MethodPost, "/v1/cdp/admin/collaterals/WETH/debt-limit", &aliceAddr, map[string]string{"value": "1"})
	require.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodPost, "/v1/cdp/admin/collaterals/WETH/unknown", &managerAddr, map[string]string{"value": "1"})
	require.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodPost, "/v1/cdp/admin/prices", &aliceAddr, map[string]string{"symbol": "WETH", "price": "1"})
	require.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodPost, "/v1/cdp/release", &aliceAddr, nil)
	require.Equal(t, http.StatusConflict, status, "release without payees")

	require.NoError(t, s.state.Update(func() error { return s.state.SetPaused(cdp.ModuleName, true) }))
	status, _ = s.do(http.MethodPost, "/v1/cdp/refresh", &aliceAddr, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestAdminParameterUpdate(t *testing.T) {
	s := newTestServer(t)
	s.configure()

	status, body := s.do(http.MethodPost, "/v1/cdp/admin/collaterals/weth/debt-limit", &managerAddr, map[string]string{"value": wad(500).String()})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, wad(500).String(), body["debtLimit"])

	status, body = s.do(http.MethodPost, "/v1/cdp/admin/collaterals/weth/min-collateral-ratio", &managerAddr, map[string]string{"value": "1000000000000000000"})
	require.Equal(t, http.StatusBadRequest, status, body)
}

func TestLiquidateAndRelease(t *testing.T) {
	s := newTestServer(t)
	s.configure()
	s.openVault()

	status, body := s.do(http.MethodPost, "/v1/cdp/liquidate", &liquidatorAddr, map[string]interface{}{"vaultId": 1})
	require.Equal(t, http.StatusConflict, status, body)

	status, body = s.do(http.MethodPost, "/v1/cdp/admin/prices", &managerAddr, map[string]string{"symbol": "WETH", "price": wad(1_200).String()})
	require.Equal(t, http.StatusOK, status, body)

	s.mint("PAR", liquidatorAddr, wad(2_000))
	status, body = s.do(http.MethodPost, "/v1/tokens/PAR/approve", &liquidatorAddr, map[string]string{"amount": wad(2_000).String()})
	require.Equal(t, http.StatusOK, status, body)

	status, body = s.do(http.MethodPost, "/v1/cdp/liquidate", &liquidatorAddr, map[string]interface{}{"vaultId": 1})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, wad(1_000).String(), body["debtRepaid"])
	require.Equal(t, "0", body["insuranceAmount"])

	status, body = s.do(http.MethodGet, "/v1/cdp/vaults/1", nil, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "0", body["debt"])

	treasury := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	status, body = s.do(http.MethodPost, "/v1/cdp/admin/payees", &managerAddr, map[string]interface{}{
		"payees": []map[string]interface{}{{"address": treasury.Hex(), "shares": 1}},
	})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, float64(1), body["totalShares"])

	status, _ = s.do(http.MethodPost, "/v1/cdp/release", &liquidatorAddr, nil)
	require.Equal(t, http.StatusConflict, status, "no fee income without origination or liquidation fees")
}
