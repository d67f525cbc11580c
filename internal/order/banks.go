package order

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"mftransact/internal/domain"
)

// StaticBankDirectory resolves default bank accounts from a CSV file with
// one `client_id,account_number,branch_code` line per client. Client master
// data is owned elsewhere; this file is an export of it.
type StaticBankDirectory map[int64]domain.BankAccount

var _ BankDirectory = StaticBankDirectory(nil)

// LoadBankDirectory reads the client bank export at path.
func LoadBankDirectory(path string) (StaticBankDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bank directory: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read bank directory: %w", err)
	}

	dir := make(StaticBankDirectory, len(records))
	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			continue // header or malformed line
		}
		dir[id] = domain.BankAccount{AccountNumber: rec[1], BranchCode: rec[2]}
	}
	return dir, nil
}

func (d StaticBankDirectory) DefaultAccount(_ context.Context, clientID int64) (domain.BankAccount, error) {
	account, ok := d[clientID]
	if !ok {
		return domain.BankAccount{}, fmt.Errorf("no bank account on file for client %d", clientID)
	}
	return account, nil
}
