package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finscraper/internal/pipeline"
	"finscraper/internal/runstore"

	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	out := map[string]string{}
	flatten("", map[string]any{
		"accounts": map[string]any{
			"checking": map[string]any{
				"balance":      1024.5,
				"transactions": []any{map[string]any{}, map[string]any{}},
			},
		},
		"currency": "USD",
	}, out)

	require.Equal(t, map[string]string{
		"accounts.checking.balance":      "1024.5",
		"accounts.checking.transactions": "2 rows",
		"currency":                       "USD",
	}, out)
}

func TestTransactionColumns(t *testing.T) {
	rows := []any{
		map[string]any{"category": "Food", "amount": -4.5, "date": "2024-03-01"},
		map[string]any{"memo_2": "x", "description": "Payroll"},
	}
	require.Equal(
		t,
		[]string{"date", "description", "amount", "category", "memo_2"},
		transactionColumns(rows),
	)
}

func TestPrintOutcome(t *testing.T) {
	var out bytes.Buffer
	printOutcome(&out, "demo-bank", pipeline.Outcome{
		Success: true,
		Data: map[string]any{
			"accounts": map[string]any{
				"checking": map[string]any{
					"balance": 1024.5,
					"transactions": []any{
						map[string]any{"date": "2024-03-01", "description": "Coffee Shop", "amount": -4.5},
					},
				},
			},
		},
	})

	text := out.String()
	require.Contains(t, text, "demo-bank")
	require.Contains(t, text, "accounts.checking.balance")
	require.Contains(t, text, "checking transactions")
	require.Contains(t, text, "Coffee Shop")
}

func TestPrintFailedOutcome(t *testing.T) {
	var out bytes.Buffer
	printOutcome(&out, "demo-bank", pipeline.Outcome{
		ErrorType:    "INVALID_PASSWORD",
		ErrorMessage: "the portal rejected the credentials",
	})
	require.Contains(t, out.String(), "INVALID_PASSWORD: the portal rejected the credentials")
}

func TestPrintRuns(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	printRuns(&out, []runstore.Run{
		{
			ID:         "abc123def456",
			StartedAt:  start,
			FinishedAt: start.Add(1500 * time.Millisecond),
			Outcome:    pipeline.Outcome{Success: true},
		},
		{
			ID:         "zzz",
			StartedAt:  start,
			FinishedAt: start,
			Outcome:    pipeline.Outcome{ErrorType: "TIMEOUT"},
		},
	})

	text := out.String()
	require.Contains(t, text, "abc123def456")
	require.Contains(t, text, "2024-03-01 09:00:00")
	require.Contains(t, text, "1.5s")
	require.Contains(t, text, "TIMEOUT")
}

func TestReadConfigDefaultsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	err := os.WriteFile(path, []byte(`{
		timezone: "UTC",
		profiles: [{name: "demo-bank", base_url: "https://bank.example", json: [{path: "/api"}]}],
		credentials: {"demo-bank": {username: "alice", password: "hunter2"}},
	}`), 0666)
	require.NoError(t, err)

	cfg, err := readConfig(path)
	require.NoError(t, err)
	require.Equal(t, default_store_file, cfg.Store.File)
	require.Len(t, cfg.Profiles, 1)
	require.Equal(t, "alice", cfg.Credentials["demo-bank"].Username)

	_, err = readConfig(filepath.Join(t.TempDir(), "missing.json5"))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "missing.json5"))
}
