package ratelimit

import (
	"testing"
	"time"
)

func TestTable_AdmitsFirstThenBusy(t *testing.T) {
	tbl := NewTable()
	t0 := time.Unix(1_700_000_000, 0)
	cooldown := 4 * time.Second

	r1 := tbl.CheckAndSet("guild1", "blur", t0, cooldown)
	if !r1.Admitted {
		t.Fatal("first CheckAndSet was not admitted")
	}

	r2 := tbl.CheckAndSet("guild1", "blur", t0.Add(time.Second), cooldown)
	if r2.Admitted {
		t.Fatal("second CheckAndSet within cooldown was admitted")
	}
	if r2.Remaining <= 0 || r2.Remaining > cooldown {
		t.Errorf("Remaining = %v, want (0, %v]", r2.Remaining, cooldown)
	}
}

func TestTable_Monotonicity(t *testing.T) {
	tbl := NewTable()
	t0 := time.Unix(1_700_000_000, 0)
	cooldown := 4 * time.Second

	if r := tbl.CheckAndSet("g", "c", t0, cooldown); !r.Admitted {
		t.Fatal("initial admission failed")
	}

	for _, delta := range []time.Duration{0, time.Millisecond, cooldown - time.Nanosecond} {
		r := tbl.CheckAndSet("g", "c", t0.Add(delta), cooldown)
		if r.Admitted {
			t.Errorf("CheckAndSet at t0+%v unexpectedly admitted", delta)
		}
	}
}

func TestTable_AdmitsAfterExpiry(t *testing.T) {
	tbl := NewTable()
	t0 := time.Unix(1_700_000_000, 0)
	cooldown := 4 * time.Second

	tbl.CheckAndSet("g", "c", t0, cooldown)

	r := tbl.CheckAndSet("g", "c", t0.Add(cooldown), cooldown)
	if !r.Admitted {
		t.Error("CheckAndSet at exactly t0+cooldown was not admitted")
	}
}

func TestTable_IndependentPerGuildAndCommand(t *testing.T) {
	tbl := NewTable()
	t0 := time.Unix(1_700_000_000, 0)
	cooldown := 4 * time.Second

	tbl.CheckAndSet("guild1", "blur", t0, cooldown)

	if r := tbl.CheckAndSet("guild2", "blur", t0, cooldown); !r.Admitted {
		t.Error("different guild was not admitted independently")
	}
	if r := tbl.CheckAndSet("guild1", "flip", t0, cooldown); !r.Admitted {
		t.Error("different command was not admitted independently")
	}
}
