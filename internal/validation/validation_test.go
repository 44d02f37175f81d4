package validation

import (
	"testing"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "0x1234567890abcdef1234567890abcdef12345678", false},
		{"valid checksum", "0xAbCdEf1234567890AbCdEf1234567890AbCdEf12", false},
		{"too short", "0x1234", true},
		{"no prefix", "1234567890abcdef1234567890abcdef1234567890", true},
		{"non hex", "0x1234567890abcdef1234567890abcdef1234567g", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := map[string]string{
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x1234567890123456789012345678901234567890": "0x1234567890123456789012345678901234567890",
	}
	for in, want := range tests {
		if got := NormalizeAddress(in); got != want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateChainID(t *testing.T) {
	if err := ValidateChainID(0); err == nil {
		t.Error("ValidateChainID(0) should fail")
	}
	if err := ValidateChainID(1); err != nil {
		t.Errorf("ValidateChainID(1) error = %v", err)
	}
}

func TestValidateContractName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"Token", false},
		{"ERC20_Upgradeable", false},
		{"$Special", false},
		{"", true},
		{"1Token", true},
		{"src/Token.sol:Token", true},
		{"My Token", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateContractName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateContractName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSourcePath(t *testing.T) {
	if err := ValidateSourcePath("contracts/Token.sol"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "  ", "src/Token.sol:Token"} {
		if err := ValidateSourcePath(bad); err == nil {
			t.Errorf("ValidateSourcePath(%q) should fail", bad)
		}
	}
}

func TestValidateCompilerVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"explorer long form", "v0.8.20+commit.a1b2c3d4", false},
		{"old compiler", "v0.4.24+commit.e67f0147", false},
		{"nightly", "v0.8.20-nightly.2023.5.1+commit.a1b2c3d4", false},
		{"missing v", "0.8.20+commit.a1b2c3d4", true},
		{"missing commit", "v0.8.20", true},
		{"short commit", "v0.8.20+commit.a1b2", true},
		{"non hex commit", "v0.8.20+commit.zzzzzzzz", true},
		{"no patch", "v0.8+commit.a1b2c3d4", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCompilerVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCompilerVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateConstructorArgs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"plain hex", "000000000000000000000000000000000000000000000000000000000000002a", false},
		{"0x prefix", "0x2a", false},
		{"odd length", "0x2", true},
		{"non hex", "zz", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConstructorArgs(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConstructorArgs(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeConstructorArgs(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"0x2A", "2a"},
		{"2a", "2a"},
		{" 0xabcd ", "abcd"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeConstructorArgs(tt.input); got != tt.expected {
			t.Errorf("NormalizeConstructorArgs(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestValidateGUID(t *testing.T) {
	for _, ok := range []string{"abc123guid", "ezq878u486pzijkvvmerl6a9mzwhv6sefgvqi5tkwceejc7tvn"} {
		if err := ValidateGUID(ok); err != nil {
			t.Errorf("ValidateGUID(%q) error = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "has space", "a&b=c"} {
		if err := ValidateGUID(bad); err == nil {
			t.Errorf("ValidateGUID(%q) should fail", bad)
		}
	}
}

func TestCompareCompilerVersions(t *testing.T) {
	tests := []struct {
		v1, v2   string
		expected int
	}{
		{"v0.8.20+commit.a1b2c3d4", "v0.8.19+commit.7dd6d404", 1},
		{"0.8.20", "v0.8.20+commit.a1b2c3d4", 0},
		{"v0.7.6", "v0.8.0", -1},
	}

	for _, tt := range tests {
		if got := CompareCompilerVersions(tt.v1, tt.v2); got != tt.expected {
			t.Errorf("CompareCompilerVersions(%q, %q) = %d, want %d", tt.v1, tt.v2, got, tt.expected)
		}
	}
}
