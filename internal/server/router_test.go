package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-core/internal/escrow"
	"marketplace-core/internal/fee"
	"marketplace-core/internal/handler"
	"marketplace-core/internal/handler/response"
	"marketplace-core/internal/ledger"
	"marketplace-core/internal/marketplace"
	"marketplace-core/internal/metatx"
	"marketplace-core/internal/replay"
	"marketplace-core/pkg/clock"
	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/signature"
	"marketplace-core/pkg/utils/lock"
)

const (
	relayerKey = "relayer-secret"
	adminToken = "admin-secret"
)

var (
	market     = common.HexToAddress("0x000000000000000000000000000000000000a4e7")
	collection = common.HexToAddress("0x00000000000000000000000000000000000c0117")
	usdt       = common.HexToAddress("0x000000000000000000000000000000000000057d")
	relayer    = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

type testServer struct {
	router *gin.Engine
	clock  *clock.Fake
	tokens *ledger.MemoryTokenLedger
}

func newTestServer(t *testing.T) (*testServer, *signerKey) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := &signerKey{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}

	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	tokens := ledger.NewMemoryTokenLedger()
	asset := ledger.NewMemoryPaymentAsset()
	asset.Credit(relayer, big.NewInt(1_000_000))
	asset.Approve(relayer, market, big.NewInt(1_000_000))
	payments := ledger.NewMemoryPaymentRegistry()
	payments.Register(usdt, asset)
	minters := ledger.NewMemoryMinterRegistry()
	minters.Grant(collection, signer.addr)

	table, err := fee.NewTable([]fee.Tier{{MinimumStake: big.NewInt(0), MarketplaceFeeBps: 250, MintFeeBps: 100}})
	require.NoError(t, err)

	core := marketplace.NewCore(marketplace.Config{Address: market, FeeRecipient: common.HexToAddress("0xfe")}, marketplace.Deps{
		Tokens:   tokens,
		Payments: payments,
		Staking:  ledger.NewMemoryStaking(),
		Minters:  minters,
		Fees:     fee.NewResolver(table),
		Escrow:   escrow.NewLedger(escrow.NewMemoryStore(), tokens, lock.NewMemoryKeyLocker(), clk),
		Replay:   replay.NewMemoryGuard(),
		Clock:    clk,
	})

	r := NewHTTPRouter(core, RouterConfig{
		Relayers:   map[string]common.Address{relayerKey: relayer},
		AdminToken: adminToken,
	})
	return &testServer{router: r, clock: clk, tokens: tokens}, signer
}

type signerKey struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "响应不是合法 JSON: %s", w.Body.String())
	return w, resp
}

func signedMint(t *testing.T, signer *signerKey, exp int64) map[string]interface{} {
	t.Helper()
	payload, err := metatx.EncodeMint(metatx.MintParams{
		Collection:     collection,
		TokenID:        big.NewInt(1),
		Amount:         10,
		Price:          big.NewInt(1000),
		PaymentAsset:   usdt,
		MetadataURI:    "ipfs://token/1",
		ExpirationDate: exp,
	}, true)
	require.NoError(t, err)
	sig, err := signature.Sign(payload, signer.key)
	require.NoError(t, err)
	return map[string]interface{}{
		"payload":   hexutil.Encode(payload),
		"length":    string(metatx.LengthHeader(payload)),
		"signature": hexutil.Encode(sig),
	}
}

func signedRent(t *testing.T, signer *signerKey, exp int64, requested uint32) map[string]interface{} {
	t.Helper()
	payload, err := metatx.EncodeRent(metatx.RentParams{
		Collection:     collection,
		TokenID:        big.NewInt(1),
		Amount:         4,
		Price:          big.NewInt(400),
		PaymentAsset:   usdt,
		ExpirationDate: exp,
	}, true)
	require.NoError(t, err)
	sig, err := signature.Sign(payload, signer.key)
	require.NoError(t, err)
	return map[string]interface{}{
		"payload":          hexutil.Encode(payload),
		"length":           string(metatx.LengthHeader(payload)),
		"signature":        hexutil.Encode(sig),
		"requested_amount": requested,
	}
}

var relayerHeaders = map[string]string{handler.HeaderRelayerKey: relayerKey}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w, resp := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, errno.OK.Code, resp.Code)
	assert.NotEmpty(t, resp.RequestID, "应生成 request id")
	assert.Equal(t, resp.RequestID, w.Header().Get(handler.HeaderRequestID))

	w, resp = s.do(t, http.MethodGet, "/health", nil, map[string]string{handler.HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", resp.RequestID, "应沿用调用方的 request id")
	assert.Equal(t, "req-42", w.Header().Get(handler.HeaderRequestID))
}

func TestReady(t *testing.T) {
	tokens := ledger.NewMemoryTokenLedger()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	core := marketplace.NewCore(marketplace.Config{}, marketplace.Deps{
		Tokens: tokens,
		Escrow: escrow.NewLedger(escrow.NewMemoryStore(), tokens, lock.NewMemoryKeyLocker(), clk),
		Replay: replay.NewMemoryGuard(),
		Clock:  clk,
	})

	down := errors.New("connection refused")
	tests := []struct {
		name     string
		probes   map[string]handler.Probe
		wantHTTP int
		wantCode int
	}{
		{"无依赖", nil, http.StatusOK, errno.OK.Code},
		{"依赖正常", map[string]handler.Probe{"redis": func(context.Context) error { return nil }}, http.StatusOK, errno.OK.Code},
		{"依赖异常", map[string]handler.Probe{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return down },
		}, http.StatusServiceUnavailable, errno.ErrUnavailable.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &testServer{router: NewHTTPRouter(core, RouterConfig{Probes: tt.probes})}
			w, resp := s.do(t, http.MethodGet, "/ready", nil, nil)
			assert.Equal(t, tt.wantHTTP, w.Code)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestMetaTxRoutes_RequireRelayerKey(t *testing.T) {
	s, signer := newTestServer(t)
	body := signedMint(t, signer, s.clock.Now().Unix()+3600)

	for _, headers := range []map[string]string{nil, {handler.HeaderRelayerKey: "wrong"}} {
		w, resp := s.do(t, http.MethodPost, "/api/v1/metatx/mint", body, headers)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, errno.ErrUnauthenticated.Code, resp.Code)
	}
	bal, _ := s.tokens.BalanceOf(context.Background(), collection, signer.addr, big.NewInt(1))
	assert.Equal(t, uint64(0), bal)
}

func TestMetaTxMint_HTTP(t *testing.T) {
	s, signer := newTestServer(t)
	body := signedMint(t, signer, s.clock.Now().Unix()+3600)

	w, resp := s.do(t, http.MethodPost, "/api/v1/metatx/mint", body, relayerHeaders)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, marketplace.OpMetaTxMint, data["operation"])
	assert.Equal(t, relayer.Hex(), data["relayer"])

	w, resp = s.do(t, http.MethodPost, "/api/v1/metatx/mint", body, relayerHeaders)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errno.ErrReplayedRequest.Code, resp.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/balances/"+collection.Hex()+"/1/"+signer.addr.Hex(), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":10`)
}

func TestMetaTxMint_HTTPValidation(t *testing.T) {
	s, signer := newTestServer(t)
	good := signedMint(t, signer, s.clock.Now().Unix()+3600)

	tests := []struct {
		name     string
		mutate   func(m map[string]interface{})
		wantCode int
		wantErr  errno.Errno
	}{
		{"missing payload", func(m map[string]interface{}) { delete(m, "payload") }, http.StatusBadRequest, errno.ErrBind},
		{"payload not hex", func(m map[string]interface{}) { m["payload"] = "zz" }, http.StatusBadRequest, errno.ErrBind},
		{"length spoofed", func(m map[string]interface{}) { m["length"] = "4" }, http.StatusBadRequest, errno.ErrLengthMismatch},
		{"short signature", func(m map[string]interface{}) { m["signature"] = "0x1234" }, http.StatusForbidden, errno.ErrInvalidSignatureFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]interface{}{}
			for k, v := range good {
				body[k] = v
			}
			tt.mutate(body)
			w, resp := s.do(t, http.MethodPost, "/api/v1/metatx/mint", body, relayerHeaders)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr.Code, resp.Code)
		})
	}
}

func TestRentAndReturn_HTTP(t *testing.T) {
	s, signer := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.tokens.Mint(ctx, collection, signer.addr, big.NewInt(1), 10, ""))
	exp := s.clock.Now().Unix() + 86400

	w, _ := s.do(t, http.MethodPost, "/api/v1/metatx/rent", signedRent(t, signer, exp, 4), relayerHeaders)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rentalPath := "/api/v1/rentals/" + collection.Hex() + "/1/" + relayer.Hex()
	w, resp := s.do(t, http.MethodGet, rentalPath, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["settled"])

	ret := map[string]interface{}{
		"collection": collection.Hex(),
		"token_ids":  []string{"1"},
		"amounts":    []uint32{4},
		"lender":     signer.addr.Hex(),
		"renter":     relayer.Hex(),
	}
	w, resp = s.do(t, http.MethodPost, "/api/v1/rentals/return", ret, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, errno.ErrRentalNotExpired.Code, resp.Code)

	s.clock.Set(time.Unix(exp+1, 0))
	w, _ = s.do(t, http.MethodPost, "/api/v1/rentals/return", ret, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = s.do(t, http.MethodGet, "/api/v1/rentals?lender="+signer.addr.Hex()+"&include_settled=true", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := resp.Data.([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0].(map[string]interface{})["settled"])

	bal, _ := s.tokens.BalanceOf(ctx, collection, signer.addr, big.NewInt(1))
	assert.Equal(t, uint64(10), bal)
}

func TestAdminFeeTiers(t *testing.T) {
	s, _ := newTestServer(t)
	body := map[string]interface{}{
		"tiers": []map[string]interface{}{
			{"minimum_stake": "0", "marketplace_fee_bps": 300, "mint_fee_bps": 150},
			{"minimum_stake": "500", "marketplace_fee_bps": 200, "mint_fee_bps": 100},
		},
	}

	w, _ := s.do(t, http.MethodPut, "/api/v1/admin/fee-tiers", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth := map[string]string{"Authorization": "Bearer " + adminToken}
	w, _ = s.do(t, http.MethodPut, "/api/v1/admin/fee-tiers", body, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp := s.do(t, http.MethodGet, "/api/v1/fees", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data.([]interface{}), 2)

	// 质押越多费率越高的表会被拒绝，旧表保持不变
	bad := map[string]interface{}{
		"tiers": []map[string]interface{}{
			{"minimum_stake": "0", "marketplace_fee_bps": 100, "mint_fee_bps": 100},
			{"minimum_stake": "500", "marketplace_fee_bps": 200, "mint_fee_bps": 100},
		},
	}
	w, resp = s.do(t, http.MethodPut, "/api/v1/admin/fee-tiers", bad, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errno.ErrInvalidFeeTable.Code, resp.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/fees/"+relayer.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tier := resp.Data.(map[string]interface{})["tier"].(map[string]interface{})
	assert.EqualValues(t, 300, tier["marketplace_fee_bps"])
}

func TestCORS(t *testing.T) {
	tokens := ledger.NewMemoryTokenLedger()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	core := marketplace.NewCore(marketplace.Config{}, marketplace.Deps{
		Tokens: tokens,
		Escrow: escrow.NewLedger(escrow.NewMemoryStore(), tokens, lock.NewMemoryKeyLocker(), clk),
		Replay: replay.NewMemoryGuard(),
		Clock:  clk,
	})

	preflight := func(r *gin.Engine, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/metatx/mint", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", handler.HeaderRelayerKey)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	r := NewHTTPRouter(core, RouterConfig{CORSOrigins: []string{"https://app.example.com"}})
	w := preflight(r, "https://app.example.com")
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight(r, "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), "不在白名单的来源不应放行")

	r = NewHTTPRouter(core, RouterConfig{})
	w = preflight(r, "https://app.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), "未配置时不启用 CORS")
}
