package features

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mikey/chain-risk/internal/core"
	"go.uber.org/zap"
)

// BuildTable extracts features for every address. Labels are keyed by
// normalized address; addresses without a label get a nil Label.
func (e *Extractor) BuildTable(ctx context.Context, addresses []string, labels map[string]int) (*core.Table, error) {
	table := &core.Table{Rows: make([]core.TableRow, 0, len(addresses))}
	for _, address := range addresses {
		addr, err := core.NormalizeAddress(address)
		if err != nil {
			return nil, err
		}

		features, err := e.Extract(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("failed to extract features for %s: %w", addr, err)
		}

		row := core.TableRow{Address: addr, Features: features}
		if label, ok := labels[addr]; ok {
			l := label
			row.Label = &l
		}
		table.Rows = append(table.Rows, row)
	}

	e.logger.Info("Built feature table", zap.Int("rows", table.Len()))
	return table, nil
}

// LoadLabels reads an address,risk_label CSV. A header row is skipped when
// its second column is not a number. Addresses are returned in file order.
func LoadLabels(path string) ([]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	return ReadLabels(f)
}

// ReadLabels parses address,risk_label records from r
func ReadLabels(r io.Reader) ([]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var addresses []string
	labels := make(map[string]int)
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read labels: %w", err)
		}
		line++
		if len(record) < 2 {
			return nil, nil, fmt.Errorf("labels line %d: expected address,risk_label", line)
		}

		label, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, nil, fmt.Errorf("labels line %d: invalid risk_label %q", line, record[1])
		}
		if label != 0 && label != 1 {
			return nil, nil, fmt.Errorf("labels line %d: risk_label must be 0 or 1, got %d", line, label)
		}

		addr, err := core.NormalizeAddress(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("labels line %d: %w", line, err)
		}
		if _, dup := labels[addr]; !dup {
			addresses = append(addresses, addr)
		}
		labels[addr] = label
	}

	return addresses, labels, nil
}

// SampleLabels returns a small fixed label set for local testing only
func SampleLabels() ([]string, map[string]int) {
	addresses := []string{
		"0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
		"0x4444444444444444444444444444444444444444",
		"0x5555555555555555555555555555555555555555",
		"0x6666666666666666666666666666666666666666",
		"0x7777777777777777777777777777777777777777",
		"0x8888888888888888888888888888888888888888",
		"0x9999999999999999999999999999999999999999",
	}
	values := []int{0, 0, 1, 0, 1, 0, 1, 0, 1, 0}

	labels := make(map[string]int, len(addresses))
	for i, a := range addresses {
		addr := strings.ToLower(a)
		addresses[i] = addr
		labels[addr] = values[i]
	}
	return addresses, labels
}
