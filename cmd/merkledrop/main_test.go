package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/pangolindex/merkledrop-go/pkg/audit"
	"github.com/pangolindex/merkledrop-go/pkg/types"
	"github.com/pangolindex/merkledrop-go/pkg/whitelist"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01"
	addrC = "0xcccccccccccccccccccccccccccccccccccccc03"

	scenarioCSV = `address,total_amount
0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa01,100
0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb02,200
0xcccccccccccccccccccccccccccccccccccccc03,300
`
	scenarioRoot         = "0x805f33176fa4a28a953ab1ef89125278ae35ad4ff362279b4432bbcb357b8225"
	scenarioLeafC        = "0xdc075fb2132ad7066843b70097b46bb4a02684a2ff5291ae771c01539a8c5efa"
	scenarioNodeAB       = "0x70225c2b2069fad1deb710d057271a8d926072c250d3aaa1d5823e6724f6df2a"
	scenarioPermutedRoot = "0x6439b249178c70a952bceacc61748867ab7ae6ad423e70191d4f56f756c433da"
	songbirdRoot         = "0xa99168d65703044b47554952229de9e52fe8a5486e095ea150c0501b29de0a32"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	// keep cli from calling os.Exit on ExitCoder errors
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"merkledrop"}, args...))
	return out.String(), err
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, code, exitErr.ExitCode())
}

func writeCSV(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "allocations.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// generateScenario writes the three-recipient batch "scenario" and returns the output dir.
func generateScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	out, err := run(t, "generate", "--input", writeCSV(t, dir, scenarioCSV), "--output-dir", outDir, "--batch-id", "scenario")
	require.NoError(t, err)
	require.Contains(t, out, "Merkle root: "+scenarioRoot)
	require.Contains(t, out, "Recipients:  3")
	require.Contains(t, out, "Total:       600")
	return outDir
}

func TestGenerate(t *testing.T) {
	outDir := generateScenario(t)

	data, err := os.ReadFile(filepath.Join(outDir, "scenario", addrC+".json"))
	require.NoError(t, err)
	var record types.AirdropRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, addrC, record.Address)
	assert.Equal(t, "300", record.Amount)
	assert.Equal(t, []string{scenarioLeafC, scenarioNodeAB}, record.Proof)
	assert.Equal(t, scenarioRoot, record.Root)

	t.Run("Regenerating is idempotent", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), scenarioCSV)
		_, err := run(t, "generate", "--input", in, "--output-dir", outDir, "--batch-id", "scenario")
		require.NoError(t, err)
	})

	t.Run("Different allocations under the same batch are rejected", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), strings.Replace(scenarioCSV, ",300", ",301", 1))
		_, err := run(t, "generate", "--input", in, "--output-dir", outDir, "--batch-id", "scenario")
		require.Error(t, err)
	})

	t.Run("Sorted leaves", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), scenarioCSV)
		_, err := run(t, "generate", "--input", in, "--output-dir", outDir, "--batch-id", "sorted", "--sort-leaves")
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(outDir, "sorted", "campaign.json"))
		require.NoError(t, err)
		var manifest types.CampaignManifest
		require.NoError(t, json.Unmarshal(data, &manifest))
		assert.Equal(t, "sorted", manifest.LeafOrder)
		assert.Equal(t, 3, manifest.LeafCount)
	})
}

func TestGenerateErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing input", func(t *testing.T) {
		_, err := run(t, "generate", "--output-dir", dir)
		require.Error(t, err)
		require.Contains(t, err.Error(), "--input")
	})

	t.Run("Duplicate address", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), scenarioCSV+addrA+",5\n")
		_, err := run(t, "generate", "--input", in, "--output-dir", dir)
		require.ErrorIs(t, err, types.ErrDuplicateAddress)
	})

	t.Run("Duplicate address aggregated", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), scenarioCSV+addrA+",5\n")
		out, err := run(t, "generate", "--input", in, "--output-dir", dir, "--aggregate", "--batch-id", "aggregated")
		require.NoError(t, err)
		require.Contains(t, out, "Total:       605")
	})

	t.Run("Supply cap", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), "address,total_amount\n"+addrA+",2300000000000000000000001\n")
		_, err := run(t, "generate", "--input", in, "--output-dir", dir, "--network", "songbird", "--enforce-supply-cap")
		require.ErrorIs(t, err, types.ErrSupplyExceeded)
	})

	t.Run("Root differs from the published root", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), scenarioCSV)
		out, err := run(t, "generate", "--input", in, "--output-dir", dir, "--network", "songbird", "--batch-id", "songbird")
		require.NoError(t, err)
		require.Contains(t, out, "Merkle root: "+scenarioRoot)
		require.Contains(t, out, "Published:   "+songbirdRoot)
	})

	t.Run("Network without a published root", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), scenarioCSV)
		out, err := run(t, "generate", "--input", in, "--output-dir", dir, "--network", "fuji", "--batch-id", "fuji")
		require.NoError(t, err)
		require.NotContains(t, out, "Published:")
	})

	t.Run("Unknown network", func(t *testing.T) {
		in := writeCSV(t, t.TempDir(), scenarioCSV)
		_, err := run(t, "generate", "--input", in, "--output-dir", dir, "--network", "ropsten")
		require.Error(t, err)
	})
}

func TestVerify(t *testing.T) {
	outDir := generateScenario(t)
	recordPath := filepath.Join(outDir, "scenario", addrC+".json")

	t.Run("Record file", func(t *testing.T) {
		out, err := run(t, "verify", "--record", recordPath, "--root", scenarioRoot)
		require.NoError(t, err)
		assert.Equal(t, "valid\n", out)
	})

	t.Run("Record file against its own root", func(t *testing.T) {
		out, err := run(t, "verify", "--record", recordPath)
		require.NoError(t, err)
		assert.Equal(t, "valid\n", out)
	})

	t.Run("Wrong root", func(t *testing.T) {
		out, err := run(t, "verify", "--record", recordPath, "--root", scenarioPermutedRoot)
		requireExitCode(t, err, exitInvalid)
		assert.Equal(t, "invalid\n", out)
	})

	t.Run("Explicit claim", func(t *testing.T) {
		out, err := run(t, "verify", "--address", addrC, "--amount", "300",
			"--proof", scenarioLeafC+","+scenarioNodeAB, "--root", scenarioRoot)
		require.NoError(t, err)
		assert.Equal(t, "valid\n", out)

		out, err = run(t, "verify", "--address", addrC, "--amount", "301",
			"--proof", scenarioLeafC, "--proof", scenarioNodeAB, "--root", scenarioRoot)
		requireExitCode(t, err, exitInvalid)
		assert.Equal(t, "invalid\n", out)
	})

	t.Run("Malformed input", func(t *testing.T) {
		_, err := run(t, "verify", "--address", addrC, "--amount", "300", "--proof", "0x1234", "--root", scenarioRoot)
		requireExitCode(t, err, exitMalformed)

		_, err = run(t, "verify", "--address", addrC, "--amount", "300", "--root", scenarioRoot)
		requireExitCode(t, err, exitMalformed)

		_, err = run(t, "verify", "--record", recordPath, "--root", "0x12")
		requireExitCode(t, err, exitMalformed)

		_, err = run(t, "verify", "--address", "0x1234", "--amount", "300", "--proof", scenarioLeafC, "--root", scenarioRoot)
		requireExitCode(t, err, exitMalformed)
	})

	t.Run("Network with a published root", func(t *testing.T) {
		out, err := run(t, "verify", "--record", recordPath, "--network", "songbird")
		requireExitCode(t, err, exitInvalid)
		assert.Equal(t, "invalid\n", out)
	})

	t.Run("Network without a published root", func(t *testing.T) {
		_, err := run(t, "verify", "--record", recordPath, "--network", "flare")
		require.Error(t, err)
		require.Contains(t, err.Error(), "no merkle root has been published")
	})

	t.Run("Missing claim", func(t *testing.T) {
		_, err := run(t, "verify", "--root", scenarioRoot)
		require.Error(t, err)
	})
}

func TestAudit(t *testing.T) {
	outDir := generateScenario(t)

	t.Run("Trusted root", func(t *testing.T) {
		out, err := run(t, "audit", "--output-dir", outDir, "--batch-id", "scenario", "--root", scenarioRoot, "--workers", "2")
		require.NoError(t, err)

		var report audit.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.True(t, report.OK())
		assert.Equal(t, 3, report.Valid)
		assert.Equal(t, "600", report.TotalAmount)
	})

	t.Run("Manifest root", func(t *testing.T) {
		_, err := run(t, "audit", "--output-dir", outDir, "--batch-id", "scenario")
		require.NoError(t, err)
	})

	t.Run("Untrusted root", func(t *testing.T) {
		out, err := run(t, "audit", "--output-dir", outDir, "--batch-id", "scenario", "--root", scenarioPermutedRoot)
		requireExitCode(t, err, exitInvalid)

		var report audit.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.False(t, report.RootMatches())
		assert.Len(t, report.Invalid, 3)
	})

	t.Run("Supply cap", func(t *testing.T) {
		_, err := run(t, "audit", "--output-dir", outDir, "--batch-id", "scenario",
			"--network", "hardhat", "--root", scenarioRoot, "--enforce-supply-cap", "--decimals", "0")
		require.NoError(t, err)

		_, err = run(t, "audit", "--output-dir", outDir, "--batch-id", "scenario", "--enforce-supply-cap")
		require.Error(t, err)
	})

	t.Run("Unknown batch", func(t *testing.T) {
		_, err := run(t, "audit", "--output-dir", outDir, "--batch-id", "missing")
		require.Error(t, err)
		require.Contains(t, err.Error(), "not found")
	})
}

func TestWhitelist(t *testing.T) {
	in := writeCSV(t, t.TempDir(), scenarioCSV)

	out, err := run(t, "whitelist", "--input", in, "--batch-size", "2", "--with-root")
	require.NoError(t, err)

	var calls []whitelist.Call
	require.NoError(t, json.Unmarshal([]byte(out), &calls))
	require.Len(t, calls, 3)

	assert.Equal(t, "setMerkleRoot", calls[0].Method)
	assert.Equal(t, "0x7cb64759"+strings.TrimPrefix(scenarioRoot, "0x"), calls[0].Data)

	assert.Equal(t, "whitelistAddresses", calls[1].Method)
	assert.Equal(t, 2, calls[1].Recipients)
	assert.Equal(t, "300", calls[1].Total)
	assert.True(t, strings.HasPrefix(calls[1].Data, "0xe67c1e69"))
	assert.Equal(t, 1, calls[2].Recipients)
	assert.Equal(t, "300", calls[2].Total)

	_, err = run(t, "whitelist", "--input", writeCSV(t, t.TempDir(), "address,total_amount\n"))
	require.ErrorIs(t, err, types.ErrEmptyAllocationSet)
}

func TestPublishedRootMismatch(t *testing.T) {
	published, differs := publishedRootMismatch("songbird", common.HexToHash(scenarioRoot))
	assert.True(t, differs)
	assert.Equal(t, songbirdRoot, published.Hex())

	_, differs = publishedRootMismatch("Songbird", common.HexToHash(songbirdRoot))
	assert.False(t, differs)

	for _, network := range []string{"", "flare", "hardhat", "ropsten"} {
		_, differs = publishedRootMismatch(network, common.HexToHash(scenarioRoot))
		assert.False(t, differs, network)
	}
}

func TestWhitelistConfig(t *testing.T) {
	dir := t.TempDir()
	in := writeCSV(t, dir, "# exported allocations\nAddress,Allocated_Amount\n"+
		strings.TrimPrefix(scenarioCSV, "address,total_amount\n"))
	cfgPath := filepath.Join(dir, "campaign.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`whitelistBatchSize: 1
input:
  path: `+in+`
  skipLines: 1
  addressColumn: address
  amountColumn: allocated_amount
store:
  type: memory
`), 0o600))

	out, err := run(t, "whitelist", "--config", cfgPath)
	require.NoError(t, err)
	var calls []whitelist.Call
	require.NoError(t, json.Unmarshal([]byte(out), &calls))
	require.Len(t, calls, 3)
	for i, call := range calls {
		assert.Equal(t, 1, call.Recipients, "call %d", i)
	}

	out, err = run(t, "whitelist", "--config", cfgPath, "--batch-size", "2")
	require.NoError(t, err)
	calls = nil
	require.NoError(t, json.Unmarshal([]byte(out), &calls))
	require.Len(t, calls, 2)
}
