// Package validation checks verification inputs before they reach an explorer.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/mod/semver"
)

// Solidity identifiers: letters, digits, _ and $, not starting with a digit
var contractNameRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Explorer GUIDs are alphanumeric; some explorers also use hyphens
var guidRegex = regexp.MustCompile(`^[A-Za-z0-9-]{1,128}$`)

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !isHex(addr[2:]) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// NormalizeAddress returns the EIP-55 checksummed form of a valid address.
func NormalizeAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID uint64) error {
	if chainID == 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

// ValidateContractName validates a bare Solidity contract name
func ValidateContractName(name string) error {
	if name == "" {
		return errors.New("contract name cannot be empty")
	}
	if !contractNameRegex.MatchString(name) {
		return errors.New("invalid contract name: must be a Solidity identifier")
	}
	return nil
}

// ValidateSourcePath validates the compilation-target path of a contract
func ValidateSourcePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New("source path cannot be empty")
	}
	if strings.Contains(p, ":") {
		return errors.New("invalid source path: must not contain ':'")
	}
	return nil
}

// ValidateCompilerVersion accepts the explorer's long form "v0.8.20+commit.a1b2c3d4".
func ValidateCompilerVersion(v string) error {
	if v == "" {
		return errors.New("compiler version cannot be empty")
	}
	if !strings.HasPrefix(v, "v") {
		return errors.New("invalid compiler version: must start with 'v' (e.g. v0.8.20+commit.a1b2c3d4)")
	}

	// semver drops build metadata, so check the commit part by hand
	core, build, _ := strings.Cut(v, "+")
	if !semver.IsValid(core) || semver.Canonical(core) != core {
		return errors.New("invalid compiler version: must be in format vX.Y.Z+commit.<hash>")
	}
	commit, ok := strings.CutPrefix(build, "commit.")
	if !ok || len(commit) < 8 || !isHex(commit) {
		return errors.New("invalid compiler version: missing +commit.<hash> suffix")
	}
	return nil
}

// ValidateConstructorArgs validates ABI-encoded constructor arguments.
// Empty is allowed; otherwise an even number of hex digits with optional 0x.
func ValidateConstructorArgs(args string) error {
	s := strings.TrimPrefix(args, "0x")
	if len(s)%2 != 0 {
		return errors.New("invalid constructor arguments: odd number of hex digits")
	}
	if !isHex(s) {
		return errors.New("invalid constructor arguments: must be hex encoded")
	}
	return nil
}

// NormalizeConstructorArgs strips the 0x prefix explorers reject
func NormalizeConstructorArgs(args string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(args), "0x"))
}

// ValidateGUID validates a verification job GUID
func ValidateGUID(guid string) error {
	if !guidRegex.MatchString(guid) {
		return errors.New("invalid guid: must be 1-128 alphanumeric characters")
	}
	return nil
}

// CompareCompilerVersions compares two compiler versions, ignoring build metadata.
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareCompilerVersions(v1, v2 string) int {
	return semver.Compare(normalizeVersion(v1), normalizeVersion(v2))
}

func normalizeVersion(v string) string {
	return "v" + strings.TrimPrefix(v, "v")
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
