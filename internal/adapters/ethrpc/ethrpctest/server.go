// Package ethrpctest provides an in-process JSON-RPC node for tests.
package ethrpctest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Handler answers one contract call. in holds the decoded arguments and the
// returned values are packed with the method's outputs.
type Handler func(in []any) ([]any, error)

type route struct {
	method abi.Method
	h      Handler
}

// Server serves eth_call and eth_getBlockByNumber from registered handlers.
// Calls without a handler revert.
type Server struct {
	*httptest.Server

	rpc *rpc.Server

	mu        sync.Mutex
	routes    map[string]route
	blockTime uint64
	calls     atomic.Int64
}

// NewServer starts a server. Callers must Close it.
func NewServer() *Server {
	s := &Server{routes: make(map[string]route), rpc: rpc.NewServer()}
	if err := s.rpc.RegisterName("eth", &ethService{s: s}); err != nil {
		panic(fmt.Sprintf("ethrpctest: register eth service: %v", err))
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.rpc.ServeHTTP(w, r)
	}))
	return s
}

// Close shuts down the HTTP listener and the RPC server.
func (s *Server) Close() {
	s.Server.Close()
	s.rpc.Stop()
}

func routeKey(to common.Address, id []byte) string {
	return to.Hex() + ":" + hexutil.Encode(id)
}

// Handle registers h for calls of method, as declared in contract, on the
// contract at to.
func (s *Server) Handle(to common.Address, contract abi.ABI, method string, h Handler) {
	m, ok := contract.Methods[method]
	if !ok {
		panic(fmt.Sprintf("ethrpctest: method %q not in abi", method))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(to, m.ID)] = route{method: m, h: h}
}

// SetBlockTimestamp sets the timestamp reported for the latest block.
func (s *Server) SetBlockTimestamp(ts uint64) {
	s.mu.Lock()
	s.blockTime = ts
	s.mu.Unlock()
}

// Calls returns the number of HTTP requests served.
func (s *Server) Calls() int64 { return s.calls.Load() }

// revertError is reported with the code nodes use for reverts.
type revertError struct{ reason string }

func (e *revertError) Error() string  { return "execution reverted: " + e.reason }
func (e *revertError) ErrorCode() int { return 3 }

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
	Data  hexutil.Bytes   `json:"data"`
}

type ethService struct{ s *Server }

// Call serves eth_call.
func (e *ethService) Call(args callArgs, _ string) (hexutil.Bytes, error) {
	data := args.Input
	if len(data) == 0 {
		data = args.Data
	}
	if args.To == nil || len(data) < 4 {
		return nil, errors.New("invalid call arguments")
	}

	e.s.mu.Lock()
	r, ok := e.s.routes[routeKey(*args.To, data[:4])]
	e.s.mu.Unlock()
	if !ok {
		return nil, &revertError{reason: "no handler"}
	}

	in, err := r.method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, &revertError{reason: err.Error()}
	}
	out, err := r.h(in)
	if err != nil {
		return nil, &revertError{reason: err.Error()}
	}
	ret, err := r.method.Outputs.Pack(out...)
	if err != nil {
		return nil, fmt.Errorf("pack %s outputs: %w", r.method.Name, err)
	}
	return ret, nil
}

// GetBlockByNumber serves eth_getBlockByNumber with only the timestamp set.
func (e *ethService) GetBlockByNumber(_ string, _ bool) (map[string]any, error) {
	e.s.mu.Lock()
	ts := e.s.blockTime
	e.s.mu.Unlock()
	return map[string]any{"timestamp": hexutil.Uint64(ts)}, nil
}
