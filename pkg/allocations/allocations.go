// Package allocations reads airdrop allocation tables.
package allocations

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pangolindex/merkledrop-go/pkg/types"
)

const (
	DefaultAddressColumn = "address"
	DefaultAmountColumn  = "total_amount"
)

// LoaderConfig describes the layout of an allocation table.
type LoaderConfig struct {
	// SkipLines discards this many raw lines before the table starts
	SkipLines int
	// HasHeader means the first row names the columns. Without a header the
	// address is column 0 and the amount column 1.
	HasHeader     bool
	AddressColumn string
	AmountColumn  string
	// Aggregate sums the amounts of repeated addresses into their first row.
	// Without it repeated addresses are returned as-is and rejected by the builder.
	Aggregate bool
	// SkipZeroAmounts drops zero rows instead of failing.
	SkipZeroAmounts bool
}

// DefaultLoaderConfig matches the exported allocation sheets: a header row with
// "address" and "total_amount" columns.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		HasHeader:     true,
		AddressColumn: DefaultAddressColumn,
		AmountColumn:  DefaultAmountColumn,
	}
}

type Loader struct {
	config *LoaderConfig
	logger *zap.Logger
}

func NewLoader(cfg *LoaderConfig, logger *zap.Logger) *Loader {
	if cfg == nil {
		cfg = DefaultLoaderConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{config: cfg, logger: logger}
}

// LoadFile reads allocations from a CSV file.
func (l *Loader) LoadFile(path string) ([]types.Allocation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open allocation file %s", path)
	}
	defer func() { _ = f.Close() }()

	allocs, err := l.Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	l.logger.Sugar().Infow("Loaded allocations", "path", path, "count", len(allocs))
	return allocs, nil
}

// Load reads allocations in row order. Row order is the order leaves are paired in.
func (l *Loader) Load(r io.Reader) ([]types.Allocation, error) {
	br := bufio.NewReader(r)
	for i := 0; i < l.config.SkipLines; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return nil, errors.Errorf("input ended while skipping line %d of %d", i+1, l.config.SkipLines)
			}
			return nil, errors.Wrap(err, "failed to skip preamble")
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	addrIdx, amountIdx := 0, 1
	if l.config.HasHeader {
		header, err := cr.Read()
		if err == io.EOF {
			return nil, errors.New("allocation table has no header row")
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read header")
		}
		if addrIdx, err = columnIndex(header, l.config.AddressColumn, DefaultAddressColumn); err != nil {
			return nil, err
		}
		if amountIdx, err = columnIndex(header, l.config.AmountColumn, DefaultAmountColumn); err != nil {
			return nil, err
		}
	}

	var (
		out   []types.Allocation
		index = make(map[common.Address]int)
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read allocation row")
		}
		pos, _ := cr.FieldPos(0)
		line := pos + l.config.SkipLines

		if blankRow(row) {
			continue
		}
		if addrIdx >= len(row) || amountIdx >= len(row) {
			return nil, errors.Errorf("line %d: expected at least %d columns, got %d", line, max(addrIdx, amountIdx)+1, len(row))
		}

		addr, err := types.ParseAddress(row[addrIdx])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		amount, err := types.ParseAmount(row[amountIdx])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if amount.IsZero() {
			if l.config.SkipZeroAmounts {
				l.logger.Sugar().Debugw("Skipping zero allocation", "line", line, "address", addr.Hex())
				continue
			}
			return nil, errors.Wrapf(types.NewError(types.KindZeroAmount, "address %s has a zero allocation", addr.Hex()), "line %d", line)
		}

		if i, ok := index[addr]; ok && l.config.Aggregate {
			sum, overflow := new(uint256.Int).AddOverflow(out[i].Amount, amount)
			if overflow || sum.BitLen() > types.AmountBits {
				return nil, errors.Wrapf(types.NewError(types.KindAmountOverflow,
					"aggregated amount for %s exceeds %d bits", addr.Hex(), types.AmountBits), "line %d", line)
			}
			out[i].Amount = sum
			l.logger.Sugar().Debugw("Aggregated duplicate address", "line", line, "address", addr.Hex(), "total", sum.Dec())
			continue
		}
		if _, ok := index[addr]; !ok {
			index[addr] = len(out)
		}
		out = append(out, types.Allocation{Address: addr, Amount: amount})
	}

	return out, nil
}

func columnIndex(header []string, name, fallback string) (int, error) {
	if name == "" {
		name = fallback
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
			return i, nil
		}
	}
	return 0, errors.Errorf("column %q not found in header %v", name, header)
}

func blankRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
