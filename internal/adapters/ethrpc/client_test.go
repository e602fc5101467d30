package ethrpc_test

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bft-labs/stableopt/internal/adapters/ethrpc"
	"github.com/bft-labs/stableopt/internal/adapters/ethrpc/ethrpctest"
)

var (
	token  = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	holder = common.HexToAddress("0x0000000000000000000000000000000000000001")

	erc20 = ethrpc.MustParseABI(`[
		{"type":"function","name":"balanceOf","stateMutability":"view",
		 "inputs":[{"name":"owner","type":"address"}],
		 "outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"totalSupply","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"uint256"}]}
	]`)
)

func dial(t *testing.T, url string, opts ...ethrpc.Option) *ethrpc.Client {
	t.Helper()
	c, err := ethrpc.Dial(url, append([]ethrpc.Option{ethrpc.WithRateLimit(0, 0)}, opts...)...)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestContractCall(t *testing.T) {
	srv := ethrpctest.NewServer()
	defer srv.Close()

	srv.Handle(token, erc20, "balanceOf", func(in []any) ([]any, error) {
		if owner, ok := in[0].(common.Address); !ok || owner != holder {
			return nil, errors.New("unknown holder")
		}
		return []any{big.NewInt(1_000_000)}, nil
	})
	srv.SetBlockTimestamp(1_700_000_123)

	c := dial(t, srv.URL)
	ctx := context.Background()

	out, err := ethrpc.NewContract(token, erc20).Call(ctx, c, "balanceOf", holder)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	balance, err := ethrpc.Output[*big.Int](out, 0)
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if balance.Int64() != 1_000_000 {
		t.Errorf("balance = %s, want 1000000", balance)
	}

	if _, err := ethrpc.Output[common.Address](out, 0); err == nil {
		t.Error("Output() with the wrong type expected error")
	}
	if _, err := ethrpc.Output[*big.Int](out, 1); err == nil {
		t.Error("Output() past the end expected error")
	}

	ts, err := c.BlockTimestamp(ctx)
	if err != nil {
		t.Fatalf("BlockTimestamp() error = %v", err)
	}
	if ts != 1_700_000_123 {
		t.Errorf("BlockTimestamp() = %d, want 1700000123", ts)
	}
}

func TestClientRPCError(t *testing.T) {
	srv := ethrpctest.NewServer()
	defer srv.Close()

	c := dial(t, srv.URL)
	_, err := ethrpc.NewContract(token, erc20).Call(context.Background(), c, "totalSupply")

	var rpcErr *ethrpc.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call() error = %v, want *RPCError", err)
	}
	if rpcErr.Code != 3 {
		t.Errorf("Code = %d, want 3", rpcErr.Code)
	}
}

func TestClientHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := dial(t, srv.URL)
	_, err := c.BlockTimestamp(context.Background())
	if err == nil {
		t.Fatal("BlockTimestamp() expected error on 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status code", err)
	}
}

func TestClientRateLimit(t *testing.T) {
	srv := ethrpctest.NewServer()
	defer srv.Close()

	c, err := ethrpc.Dial(srv.URL, ethrpc.WithRateLimit(1, 1), ethrpc.WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if _, err := c.BlockTimestamp(context.Background()); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	// The burst is spent, so the next call waits longer than the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.BlockTimestamp(ctx); err == nil {
		t.Fatal("throttled call expected error before the deadline")
	}
	if got := srv.Calls(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestClientContextCanceled(t *testing.T) {
	srv := ethrpctest.NewServer()
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := dial(t, srv.URL)
	if _, err := c.BlockTimestamp(ctx); err == nil {
		t.Fatal("BlockTimestamp() expected error with canceled context")
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ethrpc.ParseAddress("0x1234"); err == nil {
		t.Error("ParseAddress(short) expected error")
	}
	addr, err := ethrpc.ParseAddress("0xAF88D065E77C8CC2239327C5EDB3A432268E5831")
	if err != nil || addr != token {
		t.Errorf("ParseAddress() = %s, %v", addr.Hex(), err)
	}

	id := "0xb323495f7e4148be5643a4ea4a8221eef163e4bccfdedc2a6f4696baacbc86cc"
	h, err := ethrpc.ParseBytes32(id)
	if err != nil || h.Hex() != id {
		t.Errorf("ParseBytes32() = %s, %v", h.Hex(), err)
	}
	for _, bad := range []string{"0x1234", "0x" + strings.Repeat("zz", 32)} {
		if _, err := ethrpc.ParseBytes32(bad); err == nil {
			t.Errorf("ParseBytes32(%q) expected error", bad)
		}
	}
}
