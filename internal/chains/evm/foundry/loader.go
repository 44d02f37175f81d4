// Package foundry loads verification inputs from Foundry build output.
package foundry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pendergraft/explorerverify/internal/chains"
)

// ConfigFile marks a Foundry project root
const ConfigFile = "foundry.toml"

var (
	// ErrArtifactNotFound is returned when no artifact matches the contract
	ErrArtifactNotFound = errors.New("contract artifact not found")
	// ErrAmbiguousContract is returned when several sources define the same contract name
	ErrAmbiguousContract = errors.New("contract name is ambiguous")
	// ErrBuildInfoNotFound is returned when no build-info produced the contract
	ErrBuildInfoNotFound = errors.New("build-info not found")
)

// Detect checks if a directory is a Foundry project
func Detect(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, ConfigFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// projectConfig is the part of foundry.toml that locates build output.
type projectConfig struct {
	Profile map[string]struct {
		Out string `toml:"out"`
	} `toml:"profile"`
}

// OutDir returns the build output directory of the project in dir: the
// "out" setting of the active profile (FOUNDRY_PROFILE, else default), or
// dir/out when foundry.toml is missing or silent.
func OutDir(dir string) (string, error) {
	var cfg projectConfig
	if _, err := toml.DecodeFile(filepath.Join(dir, ConfigFile), &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return filepath.Join(dir, "out"), nil
		}
		return "", fmt.Errorf("parsing %s: %w", ConfigFile, err)
	}

	out := "out"
	for _, name := range []string{os.Getenv("FOUNDRY_PROFILE"), "default"} {
		if p, ok := cfg.Profile[name]; ok && name != "" && p.Out != "" {
			out = p.Out
			break
		}
	}
	if filepath.IsAbs(out) {
		return out, nil
	}
	return filepath.Join(dir, out), nil
}

// Load reads the artifact and build-info for contract from the project's
// build output.
// contract is either "Token" or the qualified "src/Token.sol:Token".
func Load(dir, contract string) (*chains.Artifact, error) {
	sourcePath, contractName := splitQualified(contract)
	if contractName == "" {
		return nil, fmt.Errorf("%w: empty contract name", ErrArtifactNotFound)
	}

	outDir, err := OutDir(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(outDir); err != nil {
		return nil, fmt.Errorf("build output %s not found - run 'forge build' first", outDir)
	}

	path, raw, meta, err := findArtifact(outDir, sourcePath, contractName)
	if err != nil {
		return nil, err
	}

	if raw.DeployedBytecode.Object == "" || raw.DeployedBytecode.Object == "0x" {
		return nil, fmt.Errorf("%s has no bytecode (likely an interface or abstract contract)", path)
	}

	target := firstKey(meta.Settings.CompilationTarget)
	bi, err := findBuildInfo(filepath.Join(outDir, "build-info"), target, contractName)
	if err != nil {
		return nil, err
	}

	input, err := stripFoundryStandardJSONKeys(bi.Input)
	if err != nil {
		return nil, fmt.Errorf("parsing standard JSON input: %w", err)
	}

	version := bi.SolcLongVersion
	if version == "" {
		version = meta.Compiler.Version
	}

	return &chains.Artifact{
		ContractName:      contractName,
		SourcePath:        target,
		CompilerVersion:   ExplorerCompilerVersion(version),
		StandardJSONInput: input,
		DeployedBytecode:  raw.DeployedBytecode.Object,
		ABI:               raw.ABI,
		EVMVersion:        meta.Settings.EVMVersion,
		Optimizer: chains.OptimizerConfig{
			Enabled: meta.Settings.Optimizer.Enabled,
			Runs:    meta.Settings.Optimizer.Runs,
		},
	}, nil
}

// ExplorerCompilerVersion converts "0.8.20+commit.a1b2c3d4" to the explorer
// form "v0.8.20+commit.a1b2c3d4".
func ExplorerCompilerVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func splitQualified(contract string) (sourcePath, name string) {
	if i := strings.LastIndex(contract, ":"); i >= 0 {
		return contract[:i], contract[i+1:]
	}
	return "", contract
}

// findArtifact walks out/{Source}.sol/{Contract}.json files.
func findArtifact(outDir, sourcePath, contractName string) (string, *artifactFile, *metadata, error) {
	type candidate struct {
		path string
		raw  *artifactFile
		meta *metadata
	}
	var found []candidate

	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != contractName+".json" || !strings.HasSuffix(filepath.Dir(path), ".sol") {
			return nil
		}

		raw, meta, err := readArtifact(path)
		if err != nil {
			return nil // unreadable artifacts are not candidates
		}
		target := firstKey(meta.Settings.CompilationTarget)
		if sourcePath != "" && target != sourcePath {
			return nil
		}
		found = append(found, candidate{path: path, raw: raw, meta: meta})
		return nil
	})
	if err != nil {
		return "", nil, nil, fmt.Errorf("scanning %s: %w", outDir, err)
	}

	switch len(found) {
	case 0:
		name := contractName
		if sourcePath != "" {
			name = sourcePath + ":" + contractName
		}
		return "", nil, nil, fmt.Errorf("%w: %s (run 'forge build' first)", ErrArtifactNotFound, name)
	case 1:
		return found[0].path, found[0].raw, found[0].meta, nil
	}

	sources := make([]string, 0, len(found))
	for _, c := range found {
		sources = append(sources, firstKey(c.meta.Settings.CompilationTarget)+":"+contractName)
	}
	sort.Strings(sources)
	return "", nil, nil, fmt.Errorf("%w: use one of %s", ErrAmbiguousContract, strings.Join(sources, ", "))
}

func readArtifact(path string) (*artifactFile, *metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw artifactFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	if raw.RawMetadata == "" {
		return nil, nil, fmt.Errorf("artifact %s has no rawMetadata", path)
	}

	var meta metadata
	if err := json.Unmarshal([]byte(raw.RawMetadata), &meta); err != nil {
		return nil, nil, fmt.Errorf("parsing rawMetadata: %w", err)
	}
	return &raw, &meta, nil
}

// findBuildInfo returns the build-info whose output contains contracts[sourcePath][contractName].
func findBuildInfo(buildInfoDir, sourcePath, contractName string) (*buildInfo, error) {
	entries, err := os.ReadDir(buildInfoDir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s - run 'forge build --build-info' first: %w", ErrBuildInfoNotFound, buildInfoDir, err)
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(buildInfoDir, entry.Name()))
		if err != nil {
			continue
		}

		var bi buildInfo
		if err := json.Unmarshal(data, &bi); err != nil || len(bi.Input) == 0 {
			continue
		}

		var output struct {
			Contracts map[string]map[string]json.RawMessage `json:"contracts"`
		}
		if err := json.Unmarshal(bi.Output, &output); err != nil {
			continue
		}
		if _, ok := output.Contracts[sourcePath][contractName]; ok {
			return &bi, nil
		}
	}
	return nil, fmt.Errorf("%w for %s:%s", ErrBuildInfoNotFound, sourcePath, contractName)
}

// foundryStandardJSONKeysToStrip are top-level keys Foundry adds that the Solidity compiler rejects.
// The standard JSON input only allows: language, sources, settings.
var foundryStandardJSONKeysToStrip = []string{"allowPaths", "basePath", "includePaths", "version"}

func stripFoundryStandardJSONKeys(input json.RawMessage) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(input, &m); err != nil {
		return nil, err
	}
	for _, key := range foundryStandardJSONKeysToStrip {
		delete(m, key)
	}
	return json.Marshal(m)
}

func firstKey(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}

// artifactFile is the subset of out/{Source}.sol/{Contract}.json we read
type artifactFile struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         bytecodeObject  `json:"bytecode"`
	DeployedBytecode bytecodeObject  `json:"deployedBytecode"`
	RawMetadata      string          `json:"rawMetadata"`
}

type bytecodeObject struct {
	Object string `json:"object"`
}

// metadata is the parsed rawMetadata field
type metadata struct {
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
	Settings struct {
		CompilationTarget map[string]string `json:"compilationTarget"`
		EVMVersion        string            `json:"evmVersion"`
		Optimizer         struct {
			Enabled bool `json:"enabled"`
			Runs    int  `json:"runs"`
		} `json:"optimizer"`
	} `json:"settings"`
}

// buildInfo represents a Foundry build-info file (hh-sol-build-info-1 format)
type buildInfo struct {
	ID              string          `json:"id"`
	SolcVersion     string          `json:"solcVersion"`     // "0.8.28"
	SolcLongVersion string          `json:"solcLongVersion"` // "0.8.28+commit.7893614a"
	Input           json.RawMessage `json:"input"`
	Output          json.RawMessage `json:"output"`
}
