package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpamm/internal/amm"
	"cpamm/internal/model"
)

var (
	admin   = model.Address{0x01}
	owner   = model.Address{0x02}
	creator = model.Address{0x05}

	sol  = model.Address{0x11}
	usdc = model.Address{0x12}
)

func newTestServer(t *testing.T) (*Server, model.Pool) {
	t.Helper()
	ctx := context.Background()
	e := amm.NewEngine(amm.Config{
		Namespace:          "test",
		Admin:              admin,
		NativeMint:         sol,
		USDMint:            usdc,
		BridgeMint:         sol,
		ReferenceSchedules: []uint16{0},
	}, nil, nil, nil, nil)

	require.NoError(t, e.RegisterMint(ctx, model.Mint{Address: sol, Decimals: 9}))
	require.NoError(t, e.RegisterMint(ctx, model.Mint{Address: usdc, Decimals: 6}))
	schedule, err := e.CreateFeeSchedule(ctx, admin, model.FeeSchedule{
		TradeFeeRate:    2_500,
		ProtocolFeeRate: 200_000,
		Owner:           owner,
	})
	require.NoError(t, err)
	require.NoError(t, e.Fund(creator, sol, 1_000_000_000_000))
	require.NoError(t, e.Fund(creator, usdc, 150_000_000_000))

	res, err := e.CreatePool(ctx, amm.CreatePoolRequest{
		Creator:     creator,
		FeeSchedule: schedule,
		MintA:       sol,
		MintB:       usdc,
		AmountA:     1_000_000_000_000,
		AmountB:     150_000_000_000,
	})
	require.NoError(t, err)
	return NewServer(e, nil), res.Pool
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

func get(t *testing.T, s *Server, path string) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(rec, req)

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := get(t, s, "/health")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body.Error)
	assert.JSONEq(t, `{"status":"ok","pools":1}`, string(body.Result))
}

func TestGetPool(t *testing.T) {
	s, pool := newTestServer(t)

	code, body := get(t, s, "/pools/"+pool.Key.String())
	require.Equal(t, http.StatusOK, code)
	var got model.Pool
	require.NoError(t, json.Unmarshal(body.Result, &got))
	assert.Equal(t, pool, got)

	code, body = get(t, s, "/pools/"+model.Address{0xee}.String())
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, body.Error)

	code, _ = get(t, s, "/pools/not-an-address")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestQuoteSwapMatchesEngine(t *testing.T) {
	s, pool := newTestServer(t)
	want, err := s.engine.QuoteSwap(amm.SwapRequest{Pool: pool.Key, InputMint: usdc, AmountIn: 1_000_000})
	require.NoError(t, err)

	code, body := get(t, s, "/pools/"+pool.Key.String()+"/quote?input_mint="+usdc.String()+"&amount_in=1000000")
	require.Equal(t, http.StatusOK, code)
	var got struct {
		AmountOut string `json:"amount_out"`
	}
	require.NoError(t, json.Unmarshal(body.Result, &got))
	assert.Equal(t, strconv.FormatUint(want.AmountOut, 10), got.AmountOut)

	// The quote moves nothing.
	after, err := s.engine.Pool(pool.Key)
	require.NoError(t, err)
	assert.Equal(t, pool, after)
}

func TestQuoteSwapErrors(t *testing.T) {
	s, pool := newTestServer(t)
	base := "/pools/" + pool.Key.String() + "/quote"

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "missing amount", query: "?input_mint=" + usdc.String(), want: http.StatusBadRequest},
		{name: "zero amount", query: "?input_mint=" + usdc.String() + "&amount_in=0", want: http.StatusBadRequest},
		{name: "foreign mint", query: "?input_mint=" + model.Address{0x99}.String() + "&amount_in=10", want: http.StatusBadRequest},
		{name: "slippage", query: "?input_mint=" + usdc.String() + "&amount_in=10&min_amount_out=1000000000000", want: http.StatusUnprocessableEntity},
		{name: "unknown discount", query: "?input_mint=" + usdc.String() + "&amount_in=10&discount_mint=" + sol.String(), want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, s, base+tt.query)
			assert.Equal(t, tt.want, code)
			assert.NotNil(t, body.Error)
		})
	}
}

func TestGetPrice(t *testing.T) {
	s, _ := newTestServer(t)

	code, body := get(t, s, "/prices/"+sol.String())
	require.Equal(t, http.StatusOK, code)
	var quote struct {
		Price string `json:"price"`
	}
	require.NoError(t, json.Unmarshal(body.Result, &quote))
	// 150 USD scaled by 1e9.
	assert.Equal(t, "150000000000", quote.Price)

	code, _ = get(t, s, "/prices/"+model.Address{0x77}.String())
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetBalance(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.engine.Fund(owner, usdc, 42))

	code, body := get(t, s, "/balances/"+owner.String()+"/"+usdc.String())
	require.Equal(t, http.StatusOK, code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(body.Result, &got))
	assert.Equal(t, "42", got["balance"])
}
