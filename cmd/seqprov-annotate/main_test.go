package main

import (
	"path/filepath"
	"testing"
)

func TestRunRejectsBadFlags(t *testing.T) {
	if code := run([]string{"-position", "notanumber"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRunRequiresTargetArguments(t *testing.T) {
	t.Setenv("SEQPROV_MLWH_DRIVER", "sqlite")
	t.Setenv("SEQPROV_MLWH_SQLITE_PATH", filepath.Join(t.TempDir(), "mlwh.db"))
	if code := run([]string{"-experiment", "expt_01"}); code != 2 {
		t.Fatalf("expected exit code 2 for missing -root/-position, got %d", code)
	}
}

func TestRunRejectsUnknownWarehouseDriver(t *testing.T) {
	t.Setenv("SEQPROV_MLWH_DRIVER", "oracle")
	if code := run([]string{"-since", "2020-06-01T00:00:00Z"}); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestRunListsRecentFromEmptyWarehouse(t *testing.T) {
	t.Setenv("SEQPROV_MLWH_DRIVER", "sqlite")
	t.Setenv("SEQPROV_MLWH_SQLITE_PATH", filepath.Join(t.TempDir(), "mlwh.db"))
	if code := run([]string{"-since", "2020-06-01T00:00:00Z"}); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestRunRejectsBadSince(t *testing.T) {
	t.Setenv("SEQPROV_MLWH_DRIVER", "sqlite")
	t.Setenv("SEQPROV_MLWH_SQLITE_PATH", filepath.Join(t.TempDir(), "mlwh.db"))
	if code := run([]string{"-since", "yesterday"}); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
