package genesis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEthToWei(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.5", "500000000000000000"},
		{"1.23", "1230000000000000000"},
		{"0", "0"},
		{"1000000", "1000000000000000000000000"},
		{" 2 ", "2000000000000000000"},
		// sub-wei fractions are truncated, never rendered scientific
		{"0.0000000000000000015", "1"},
	}
	for _, c := range cases {
		got, err := EthToWei(c.in)
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestEthToWeiRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "-1", "1e", "0x10"} {
		_, err := EthToWei(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestChecksumAddress(t *testing.T) {
	// EIP-55 reference vectors.
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, v := range vectors {
		got, err := ChecksumAddress(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)

		// All-lowercase input normalizes to the same checksum form.
		got, err = ChecksumAddress("0x" + stringToLower(v[2:]))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestChecksumAddressRejectsBadInput(t *testing.T) {
	for _, in := range []string{
		"",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",    // missing 0x
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe",   // too short
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAedf", // too long
		"0xZZZZb6053F3E94C9b9A09f33669435E7Ef1BeAed",  // non-hex
	} {
		_, err := ChecksumAddress(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestWriteGenesisDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	alloc := map[string]string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed": "1000000000000000000",
	}
	require.NoError(t, NewDocument(alloc).Write(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, 1337, doc.Config.ChainID)
	assert.Equal(t, 0, doc.Config.LondonBlock)
	assert.Equal(t, 0, doc.Config.TerminalTotalDifficulty)
	assert.Equal(t, "1", doc.Difficulty)
	assert.Equal(t, "8000000", doc.GasLimit)
	require.Contains(t, doc.Alloc, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Equal(t, "1000000000000000000", doc.Alloc["0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"].Balance)
}

func TestWritePassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password.txt")
	require.NoError(t, WritePassword(path, "hunter2"))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(b))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

func stringToLower(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'F' {
			out[i] = c - 'A' + 'a'
		}
	}
	return string(out)
}
