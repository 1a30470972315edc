package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		total, paid string
		want        models.NoticeStatus
	}{
		{"70000", "0", models.NoticeUnpaid},
		{"70000", "15000", models.NoticePartial},
		{"70000", "70000", models.NoticePaid},
		{"70000", "70000.00", models.NoticePaid},
		{"0", "0", models.NoticeUnpaid},
	}
	for _, c := range cases {
		if got := StatusFor(d(c.total), d(c.paid)); got != c.want {
			t.Errorf("StatusFor(%s, %s) = %s, want %s", c.total, c.paid, got, c.want)
		}
	}
}

func TestApplyPaymentDelta(t *testing.T) {
	st, err := ApplyPaymentDelta(d("70000"), d("0"), d("15000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.AmountPaid.Equal(d("15000")) || st.Status != models.NoticePartial {
		t.Fatalf("got paid=%s status=%s", st.AmountPaid, st.Status)
	}

	st, err = ApplyPaymentDelta(st.TotalAmount, st.AmountPaid, d("55000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.AmountPaid.Equal(d("70000")) || st.Status != models.NoticePaid {
		t.Fatalf("got paid=%s status=%s", st.AmountPaid, st.Status)
	}

	_, err = ApplyPaymentDelta(st.TotalAmount, st.AmountPaid, d("1"))
	if !apperr.Is(err, apperr.KindConflict, apperr.ReasonOverpayment) {
		t.Fatalf("expected overpayment conflict, got %v", err)
	}
}

func TestApplyPaymentDelta_rejectsNonPositive(t *testing.T) {
	for _, amount := range []string{"0", "-5"} {
		if _, err := ApplyPaymentDelta(d("100"), d("0"), d(amount)); apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("amount %s: expected validation error, got %v", amount, err)
		}
	}
}

func TestApplyPaymentDelta_exactRemainder(t *testing.T) {
	st, err := ApplyPaymentDelta(d("70000"), d("30000"), d("40000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != models.NoticePaid {
		t.Fatalf("paying exact remainder should mark PAID, got %s", st.Status)
	}
}

func TestApplyTotalDelta(t *testing.T) {
	st, err := ApplyTotalDelta(d("70000"), d("15000"), d("5000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.TotalAmount.Equal(d("65000")) || st.Status != models.NoticePartial {
		t.Fatalf("got total=%s status=%s", st.TotalAmount, st.Status)
	}
}

func TestApplyTotalDelta_floor(t *testing.T) {
	// Below the amount already paid.
	_, err := ApplyTotalDelta(d("70000"), d("70000"), d("5000"))
	if !apperr.Is(err, apperr.KindConflict, apperr.ReasonBelowPaidAmount) {
		t.Fatalf("expected below-paid conflict, got %v", err)
	}

	// Larger than the total itself.
	_, err = ApplyTotalDelta(d("70000"), d("0"), d("70001"))
	if !apperr.Is(err, apperr.KindConflict, apperr.ReasonReductionTooLarge) {
		t.Fatalf("expected too-large conflict, got %v", err)
	}
}

func TestApplyTotalDelta_toPaidBoundary(t *testing.T) {
	// Reducing the total down to exactly the paid amount flips the notice to PAID.
	st, err := ApplyTotalDelta(d("70000"), d("65000"), d("5000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != models.NoticePaid {
		t.Fatalf("expected PAID at boundary, got %s", st.Status)
	}
}

func TestInvariantAfterSequences(t *testing.T) {
	// Random-ish mixed sequence of payments and reductions; the invariant
	// 0 <= paid <= total must hold after every accepted mutation.
	total, paid := d("100000"), d("0")
	steps := []struct {
		kind   string
		amount string
	}{
		{"pay", "10000"},
		{"reduce", "20000"},
		{"pay", "60000"},
		{"reduce", "15000"}, // fails: newTotal 65000 < paid 70000
		{"reduce", "10000"},
		{"pay", "5000"}, // fails: overpayment past 70000 total
	}
	for i, s := range steps {
		var st State
		var err error
		if s.kind == "pay" {
			st, err = ApplyPaymentDelta(total, paid, d(s.amount))
		} else {
			st, err = ApplyTotalDelta(total, paid, d(s.amount))
		}
		if err != nil {
			continue
		}
		total, paid = st.TotalAmount, st.AmountPaid
		if paid.Sign() < 0 || paid.GreaterThan(total) {
			t.Fatalf("step %d: invariant broken, total=%s paid=%s", i, total, paid)
		}
		if st.Status != StatusFor(total, paid) {
			t.Fatalf("step %d: status %s does not match amounts", i, st.Status)
		}
	}
	if !total.Equal(d("70000")) || !paid.Equal(d("70000")) {
		t.Fatalf("final state total=%s paid=%s, want 70000/70000", total, paid)
	}
}
