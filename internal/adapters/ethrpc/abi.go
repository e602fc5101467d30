package ethrpc

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller executes read-only contract calls. *Client implements it.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// MustParseABI parses a JSON ABI definition and panics on error. It is
// meant for package-level ABI fragments.
func MustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("ethrpc: invalid abi: %v", err))
	}
	return parsed
}

// Contract binds an ABI to a deployed address.
type Contract struct {
	Address common.Address
	ABI     abi.ABI
}

// NewContract returns a contract at address.
func NewContract(address common.Address, parsed abi.ABI) Contract {
	return Contract{Address: address, ABI: parsed}
}

// Call packs method with args, executes it and unpacks the outputs.
func (c Contract) Call(ctx context.Context, caller Caller, method string, args ...any) (Outputs, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: pack: %w", method, err)
	}
	ret, err := caller.Call(ctx, c.Address, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out, err := c.ABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("%s: unpack %d bytes: %w", method, len(ret), err)
	}
	return out, nil
}

// Outputs holds the decoded return values of a call.
type Outputs []any

// Output returns the i-th value as T.
func Output[T any](out Outputs, i int) (T, error) {
	var zero T
	if i >= len(out) {
		return zero, fmt.Errorf("output %d of %d missing", i, len(out))
	}
	v, ok := out[i].(T)
	if !ok {
		return zero, fmt.Errorf("output %d: got %T, want %T", i, out[i], zero)
	}
	return v, nil
}

// ParseAddress validates a hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseBytes32 decodes a 0x-prefixed 32-byte value such as a Morpho market ID.
func ParseBytes32(s string) (common.Hash, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("bytes32 %q: want %d hex characters, got %d", s, 2*common.HashLength, len(raw))
	}
	b := common.FromHex(raw)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("bytes32 %q: invalid hex", s)
	}
	return common.BytesToHash(b), nil
}
