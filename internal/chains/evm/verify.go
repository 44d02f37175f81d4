package evm

import (
	"bytes"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/explorerverify/internal/chains"
)

// Library placeholder pattern: __$<34 hex chars>$__
var libraryPlaceholder = regexp.MustCompile(`__\$[a-f0-9]{34}\$__`)

// StripMetadata removes the CBOR metadata solc appends to runtime code.
// The last two bytes are the big-endian length of the CBOR map before them.
func StripMetadata(bytecode []byte) []byte {
	if len(bytecode) < 2 {
		return bytecode
	}
	n := int(bytecode[len(bytecode)-2])<<8 | int(bytecode[len(bytecode)-1])
	start := len(bytecode) - 2 - n
	if n == 0 || start < 0 {
		return bytecode
	}
	// CBOR map header with 1 to 5 entries
	if b := bytecode[start]; b < 0xa1 || b > 0xa5 {
		return bytecode
	}
	return bytecode[:start]
}

// CompareBytecode compares on-chain runtime code with an artifact's
// hex-encoded deployed bytecode.
func CompareBytecode(deployed []byte, artifactHex string) *chains.CompareResult {
	if HasLibraryPlaceholders(artifactHex) {
		return &chains.CompareResult{
			MatchType: chains.MatchSkipped,
			Message:   "Artifact links external libraries; local comparison skipped",
		}
	}

	artifact := common.FromHex(artifactHex)

	if bytes.Equal(deployed, artifact) {
		return &chains.CompareResult{
			Match:     true,
			MatchType: chains.MatchFull,
			Message:   "Bytecode matches exactly including metadata",
		}
	}

	if bytes.Equal(StripMetadata(deployed), StripMetadata(artifact)) {
		return &chains.CompareResult{
			Match:     true,
			MatchType: chains.MatchPartial,
			Message:   "Executable code matches, metadata differs (different source paths, comments, or build environment)",
		}
	}

	return &chains.CompareResult{
		Match:     false,
		MatchType: chains.MatchNone,
		Message:   "Bytecode does not match",
	}
}

// HasLibraryPlaceholders checks if hex bytecode contains unlinked library placeholders
func HasLibraryPlaceholders(bytecode string) bool {
	return libraryPlaceholder.MatchString(bytecode)
}
