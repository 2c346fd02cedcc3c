// Package genesis builds the fixed-schema genesis.json and password file for
// a geth-style development chain.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// ChainConfig pins every fork at block zero so the dev chain runs the latest
// rules from genesis.
type ChainConfig struct {
	ChainID                 int `json:"chainId"`
	HomesteadBlock          int `json:"homesteadBlock"`
	EIP150Block             int `json:"eip150Block"`
	EIP155Block             int `json:"eip155Block"`
	EIP158Block             int `json:"eip158Block"`
	ByzantiumBlock          int `json:"byzantiumBlock"`
	ConstantinopleBlock     int `json:"constantinopleBlock"`
	PetersburgBlock         int `json:"petersburgBlock"`
	IstanbulBlock           int `json:"istanbulBlock"`
	BerlinBlock             int `json:"berlinBlock"`
	LondonBlock             int `json:"londonBlock"`
	TerminalTotalDifficulty int `json:"terminalTotalDifficulty"`
}

// Account is a funded genesis account. Balance is wei as a decimal string.
type Account struct {
	Balance string `json:"balance"`
}

// Document is the genesis.json layout geth expects.
type Document struct {
	Config     ChainConfig        `json:"config"`
	Difficulty string             `json:"difficulty"`
	GasLimit   string             `json:"gasLimit"`
	Alloc      map[string]Account `json:"alloc"`
}

// DefaultChainConfig matches the conventional local dev chain: id 1337,
// everything enabled from block zero.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{ChainID: 1337}
}

// NewDocument builds a Document with the default config and the given
// allocation of checksum address -> wei balance.
func NewDocument(alloc map[string]string) Document {
	accounts := make(map[string]Account, len(alloc))
	for addr, wei := range alloc {
		accounts[addr] = Account{Balance: wei}
	}
	return Document{
		Config:     DefaultChainConfig(),
		Difficulty: "1",
		GasLimit:   "8000000",
		Alloc:      accounts,
	}
}

// Write persists the document as indented JSON at path.
func (d Document) Write(path string) error {
	b, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// WritePassword stores pw in plain text at path. Development use only; the
// caller is responsible for warning the operator.
func WritePassword(path, pw string) error {
	return os.WriteFile(path, []byte(pw), 0o600)
}

// EthToWei converts a decimal ETH amount to an exact wei string, rejecting
// malformed and negative inputs. Fractional wei is truncated, matching the
// fixed-point formatting geth requires (never scientific notation).
func EthToWei(eth string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(eth))
	if err != nil {
		return "", fmt.Errorf("%q is not a valid ETH amount", eth)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("ETH amount must not be negative: %s", eth)
	}
	return d.Shift(18).Truncate(0).String(), nil
}

// ChecksumAddress validates addr and returns its EIP-55 checksum form.
func ChecksumAddress(addr string) (string, error) {
	a := strings.TrimSpace(addr)
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		return "", fmt.Errorf("address must start with 0x: %s", addr)
	}
	hexPart := strings.ToLower(a[2:])
	if len(hexPart) != 40 {
		return "", fmt.Errorf("address must be 42 characters long: %s", addr)
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", fmt.Errorf("address contains non-hex characters: %s", addr)
		}
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexPart))
	digest := h.Sum(nil)

	out := make([]byte, 40)
	for i := 0; i < 40; i++ {
		c := hexPart[i]
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if c >= 'a' && c <= 'f' && nibble >= 8 {
			c = c - 'a' + 'A'
		}
		out[i] = c
	}
	return "0x" + string(out), nil
}
