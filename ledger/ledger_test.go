package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/otter-sec/por-v2/errs"
)

const validLedgerJSON = `{
  "timestamp": 1700000000,
  "assets": {
    "btc": {"price": 60000, "usdt_decimals": 2, "balance_decimals": 6},
    "eth": {"price": 3000, "usdt_decimals": 2, "balance_decimals": 6}
  },
  "accounts": {
    "1111111111111111": {"btc": 100, "eth": 200},
    "2222222222222222": {"btc": 50, "eth": 75}
  }
}`

func writeLedger(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing test ledger: %v", err)
	}
	return path
}

func TestLoadValidLedger(t *testing.T) {
	l, err := Load(writeLedger(t, validLedgerJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Timestamp != 1700000000 {
		t.Fatalf("timestamp = %d, want 1700000000", l.Timestamp)
	}
	if len(l.Assets) != 2 || l.Assets[0].Name != "btc" || l.Assets[1].Name != "eth" {
		t.Fatalf("assets not sorted by name: %+v", l.Assets)
	}
	if len(l.Accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(l.Accounts))
	}
	// accounts must come back in userhash-sorted order
	if l.Accounts[0].UserHash != "1111111111111111" || l.Accounts[1].UserHash != "2222222222222222" {
		t.Fatalf("accounts not sorted by userhash: %+v", l.Accounts)
	}
}

func TestLoadRejectsEmptyAssets(t *testing.T) {
	_, err := Load(writeLedger(t, `{"timestamp": 1, "assets": {}, "accounts": {}}`))
	if !errors.Is(err, errs.ErrLedgerMalformed) {
		t.Fatalf("err = %v, want ErrLedgerMalformed", err)
	}
}

func TestLoadRejectsInconsistentDecimalSum(t *testing.T) {
	bad := `{
      "timestamp": 1,
      "assets": {
        "btc": {"price": 1, "usdt_decimals": 2, "balance_decimals": 6},
        "eth": {"price": 1, "usdt_decimals": 3, "balance_decimals": 6}
      },
      "accounts": {}
    }`
	_, err := Load(writeLedger(t, bad))
	if !errors.Is(err, errs.ErrLedgerMalformed) {
		t.Fatalf("err = %v, want ErrLedgerMalformed", err)
	}
}

func TestLoadRejectsMissingBalance(t *testing.T) {
	bad := `{
      "timestamp": 1,
      "assets": {"btc": {"price": 1, "usdt_decimals": 2, "balance_decimals": 6}},
      "accounts": {"1111111111111111": {}}
    }`
	_, err := Load(writeLedger(t, bad))
	if !errors.Is(err, errs.ErrLedgerMalformed) {
		t.Fatalf("err = %v, want ErrLedgerMalformed", err)
	}
}

func TestLoadRejectsPaddingSentinelCollision(t *testing.T) {
	bad := `{
      "timestamp": 1,
      "assets": {"btc": {"price": 1, "usdt_decimals": 2, "balance_decimals": 6}},
      "accounts": {"0000000000000000": {"btc": 1}}
    }`
	_, err := Load(writeLedger(t, bad))
	if !errors.Is(err, errs.ErrLedgerMalformed) {
		t.Fatalf("err = %v, want ErrLedgerMalformed", err)
	}
}

func TestPadExtendsToBatchSizeMultiple(t *testing.T) {
	l, err := Load(writeLedger(t, validLedgerJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	l.Pad(8)
	if len(l.Accounts) != 8 {
		t.Fatalf("len(Accounts) = %d, want 8", len(l.Accounts))
	}
	for i := 2; i < 8; i++ {
		if l.Accounts[i].UserHash != "0000000000000000" {
			t.Fatalf("padding account %d has userhash %q, want the zero sentinel", i, l.Accounts[i].UserHash)
		}
		for _, b := range l.Accounts[i].Balance {
			if b.Sign() != 0 {
				t.Fatalf("padding account %d has non-zero balance", i)
			}
		}
	}
}

func TestPadIsNoOpOnExactMultiple(t *testing.T) {
	l, err := Load(writeLedger(t, validLedgerJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	l.Pad(2)
	if len(l.Accounts) != 2 {
		t.Fatalf("len(Accounts) = %d, want 2 (no padding needed)", len(l.Accounts))
	}
}

func TestIndexOf(t *testing.T) {
	l, err := Load(writeLedger(t, validLedgerJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx := l.IndexOf("2222222222222222"); idx != 1 {
		t.Fatalf("IndexOf(present) = %d, want 1", idx)
	}
	if idx := l.IndexOf("not-a-real-hash1"); idx != -1 {
		t.Fatalf("IndexOf(absent) = %d, want -1", idx)
	}
}

func TestPrices(t *testing.T) {
	l, err := Load(writeLedger(t, validLedgerJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	prices := l.Prices()
	if len(prices) != 2 || prices[0].Int64() != 60000 || prices[1].Int64() != 3000 {
		t.Fatalf("Prices() = %v, want [60000, 3000]", prices)
	}
}
