// Package endpoints maps EIP-155 chain IDs to block explorer verification endpoints.
package endpoints

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SimulatedNetwork is the in-process chain. Contracts deployed there are
// gone when the process exits, so nothing can be verified against it.
const SimulatedNetwork = "hardhat"

var (
	// ErrSimulatedNetwork is returned for the in-process network label
	ErrSimulatedNetwork = errors.New("the in-process hardhat network cannot be used for verification; pass a real network")
	// ErrEndpointNotFound is returned when no explorer is known for a chain ID
	ErrEndpointNotFound = errors.New("an explorer endpoint could not be found for this network")
	// ErrInvalidEndpoint is returned when a table entry is malformed
	ErrInvalidEndpoint = errors.New("invalid endpoint entry")
)

//go:embed endpoints.yaml
var defaultTableYAML []byte

// ChainEndpoint is where a verification is submitted and where a human can
// look at the result.
type ChainEndpoint struct {
	APIURL     string `json:"apiUrl" yaml:"apiUrl"`
	BrowserURL string `json:"browserUrl" yaml:"browserUrl"`
}

// Network is a named table row.
type Network struct {
	ChainID    uint64 `json:"chainId" yaml:"chainId"`
	Name       string `json:"name" yaml:"name"`
	APIURL     string `json:"apiUrl" yaml:"apiUrl"`
	BrowserURL string `json:"browserUrl" yaml:"browserUrl"`
}

// Endpoint returns the row's endpoint pair
func (n Network) Endpoint() ChainEndpoint {
	return ChainEndpoint{APIURL: n.APIURL, BrowserURL: n.BrowserURL}
}

// Table is an immutable chain ID -> endpoint mapping.
type Table struct {
	byID map[uint64]Network
}

// Parse builds a table from YAML of the form {networks: [{chainId, name, apiUrl, browserUrl}]}.
func Parse(data []byte) (*Table, error) {
	var doc struct {
		Networks []Network `yaml:"networks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing endpoint table: %w", err)
	}
	return (&Table{byID: map[uint64]Network{}}).With(doc.Networks...)
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded table. It is parsed once per process.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultTableYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded endpoint table is invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Resolve finds the endpoint of the embedded table.
func Resolve(chainID uint64, networkName string) (ChainEndpoint, error) {
	return Default().Resolve(chainID, networkName)
}

// Resolve returns the endpoint for chainID. networkName is only used to
// reject the simulated network and to make errors readable.
func (t *Table) Resolve(chainID uint64, networkName string) (ChainEndpoint, error) {
	if networkName == SimulatedNetwork {
		return ChainEndpoint{}, ErrSimulatedNetwork
	}

	n, ok := t.byID[chainID]
	if !ok {
		return ChainEndpoint{}, fmt.Errorf("%w. ChainID %d, selected network is %q. "+
			"Possible causes are: the selected network is wrong, or the network config is faulty",
			ErrEndpointNotFound, chainID, networkName)
	}
	return n.Endpoint(), nil
}

// Lookup returns the table row for chainID.
func (t *Table) Lookup(chainID uint64) (Network, bool) {
	n, ok := t.byID[chainID]
	return n, ok
}

// LookupName finds a row by its name, case-insensitively.
func (t *Table) LookupName(name string) (Network, bool) {
	for _, n := range t.byID {
		if strings.EqualFold(n.Name, name) {
			return n, true
		}
	}
	return Network{}, false
}

// All returns every row sorted by chain ID.
func (t *Table) All() []Network {
	out := make([]Network, 0, len(t.byID))
	for _, n := range t.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Len returns the number of networks
func (t *Table) Len() int {
	return len(t.byID)
}

// With returns a copy of t with extra rows. A row with an existing chain ID
// replaces it. t itself is left untouched.
func (t *Table) With(networks ...Network) (*Table, error) {
	next := &Table{byID: make(map[uint64]Network, len(t.byID)+len(networks))}
	for id, n := range t.byID {
		next.byID[id] = n
	}

	for _, n := range networks {
		if err := validate(n); err != nil {
			return nil, err
		}
		next.byID[n.ChainID] = n
	}
	return next, nil
}

// MergeFile returns a copy of t extended with the rows of a YAML table file.
func (t *Table) MergeFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint table: %w", err)
	}
	extra, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t.With(extra.All()...)
}

func validate(n Network) error {
	switch {
	case n.ChainID == 0:
		return fmt.Errorf("%w: chainId is required (%q)", ErrInvalidEndpoint, n.Name)
	case n.APIURL == "":
		return fmt.Errorf("%w: apiUrl is required for chain %d", ErrInvalidEndpoint, n.ChainID)
	case n.BrowserURL == "":
		return fmt.Errorf("%w: browserUrl is required for chain %d", ErrInvalidEndpoint, n.ChainID)
	case !strings.HasPrefix(n.APIURL, "http://") && !strings.HasPrefix(n.APIURL, "https://"):
		return fmt.Errorf("%w: apiUrl for chain %d must be an http(s) URL", ErrInvalidEndpoint, n.ChainID)
	}
	return nil
}

// AddressURL is the browser page showing the verified source of address.
func (e ChainEndpoint) AddressURL(address string) string {
	return strings.TrimSuffix(e.BrowserURL, "/") + "/address/" + address + "#code"
}
