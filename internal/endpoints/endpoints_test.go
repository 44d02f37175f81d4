package endpoints

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_KnownChains(t *testing.T) {
	tests := []struct {
		chainID uint64
		api     string
		browser string
	}{
		{1, "https://blockscout.com/eth/mainnet/api", "https://blockscout.com/eth/mainnet"},
		{5, "https://blockscout.com/eth/goerli/api", "https://blockscout.com/eth/goerli"},
		{10, "https://api-optimistic.etherscan.io/api", "https://optimistic.etherscan.io/"},
		{56, "https://api.bscscan.com/api", "https://bscscan.com"},
		{97, "https://api-testnet.bscscan.com/api", "https://testnet.bscscan.com"},
		{100, "https://blockscout.com/xdai/mainnet/api", "https://blockscout.com/xdai/mainnet"},
		{122, "https://explorer.fuse.io/api", "https://explorer.fuse.io/"},
		{137, "https://api.polygonscan.com/api", "https://polygonscan.com"},
		{250, "https://api.ftmscan.com/api", "https://ftmscan.com"},
		{821, "https://blockscout.com/callisto/testnet/api", "https://blockscout.com/callisto/testnet"},
		{42161, "https://api.arbiscan.io/api", "https://arbiscan.io/"},
		{80001, "https://api-testnet.polygonscan.com/api", "https://mumbai.polygonscan.com/"},
	}

	for _, tt := range tests {
		ep, err := Resolve(tt.chainID, "somenet")
		require.NoError(t, err, "chain %d", tt.chainID)
		assert.Equal(t, ChainEndpoint{APIURL: tt.api, BrowserURL: tt.browser}, ep)
	}
}

func TestDefault_HasEveryNetwork(t *testing.T) {
	all := Default().All()
	require.Len(t, all, 24)

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ChainID, all[i].ChainID)
	}
	for _, n := range all {
		ep, err := Resolve(n.ChainID, n.Name)
		require.NoError(t, err)
		assert.Equal(t, n.Endpoint(), ep)
	}
}

func TestResolve_UnknownChain(t *testing.T) {
	_, err := Resolve(31337, "localhost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEndpointNotFound)
	assert.Contains(t, err.Error(), "31337")
	assert.Contains(t, err.Error(), "localhost")
}

func TestResolve_SimulatedNetwork(t *testing.T) {
	for _, id := range []uint64{1, 31337} {
		_, err := Resolve(id, SimulatedNetwork)
		assert.ErrorIs(t, err, ErrSimulatedNetwork)
	}
}

func TestTable_With(t *testing.T) {
	base := Default()
	extra := Network{ChainID: 31337, Name: "anvil", APIURL: "http://localhost:4000/api", BrowserURL: "http://localhost:4000"}

	next, err := base.With(extra)
	require.NoError(t, err)

	ep, err := next.Resolve(31337, "anvil")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000/api", ep.APIURL)

	// the default table is never mutated
	_, ok := base.Lookup(31337)
	assert.False(t, ok)
	assert.Equal(t, base.Len()+1, next.Len())
}

func TestTable_WithOverridesExisting(t *testing.T) {
	next, err := Default().With(Network{ChainID: 1, Name: "mainnet", APIURL: "https://api.etherscan.io/api", BrowserURL: "https://etherscan.io"})
	require.NoError(t, err)

	ep, err := next.Resolve(1, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "https://api.etherscan.io/api", ep.APIURL)

	orig, err := Resolve(1, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, "https://blockscout.com/eth/mainnet/api", orig.APIURL)
}

func TestTable_WithRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		n    Network
	}{
		{"no chain id", Network{APIURL: "https://a/api", BrowserURL: "https://a"}},
		{"no api url", Network{ChainID: 9, BrowserURL: "https://a"}},
		{"no browser url", Network{ChainID: 9, APIURL: "https://a/api"}},
		{"bad scheme", Network{ChainID: 9, APIURL: "ftp://a/api", BrowserURL: "https://a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default().With(tt.n)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("networks: [this is not: valid"))
	assert.Error(t, err)
}

func TestLookupName(t *testing.T) {
	n, ok := Default().LookupName("Polygon")
	require.True(t, ok)
	assert.Equal(t, uint64(137), n.ChainID)

	_, ok = Default().LookupName("nope")
	assert.False(t, ok)
}

func TestChainEndpoint_AddressURL(t *testing.T) {
	addr := "0x1234567890123456789012345678901234567890"
	assert.Equal(t, "https://arbiscan.io/address/"+addr+"#code",
		ChainEndpoint{BrowserURL: "https://arbiscan.io/"}.AddressURL(addr))
	assert.Equal(t, "https://bscscan.com/address/"+addr+"#code",
		ChainEndpoint{BrowserURL: "https://bscscan.com"}.AddressURL(addr))
}

func TestTable_MergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`networks:
  - chainId: 424242
    name: devnet
    apiUrl: https://explorer.devnet.example/api
    browserUrl: https://explorer.devnet.example
`), 0o644))

	table, err := Default().MergeFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Len()+1, table.Len())

	ep, err := table.Resolve(424242, "devnet")
	require.NoError(t, err)
	assert.Equal(t, "https://explorer.devnet.example/api", ep.APIURL)

	_, err = Default().MergeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
