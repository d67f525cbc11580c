package domain

import (
	"errors"
	"testing"
)

func TestStatusRankOrdering(t *testing.T) {
	forward := []TransactionStatus{
		StatusRequested,
		StatusPlaced,
		StatusRedirected,
		StatusPaymentProvisional,
		StatusCompleted,
		StatusConcluded,
	}
	for i := 1; i < len(forward); i++ {
		if forward[i].Rank() <= forward[i-1].Rank() {
			t.Errorf("%q rank %d not after %q rank %d",
				forward[i], forward[i].Rank(), forward[i-1], forward[i-1].Rank())
		}
	}
	for _, s := range []TransactionStatus{StatusCancelled, StatusReversed, StatusUnknown} {
		if s.Rank() != -1 {
			t.Errorf("%q rank = %d, want -1", s, s.Rank())
		}
	}
}

func TestIsRecurring(t *testing.T) {
	if (&Transaction{Mode: ModeLumpsum}).IsRecurring() {
		t.Error("lumpsum entry reported recurring")
	}
	if !(&Transaction{Mode: ModeRecurring}).IsRecurring() {
		t.Error("recurring entry not reported recurring")
	}
}

func TestRetriable(t *testing.T) {
	te := &TransportError{Op: "orderEntryParam", Err: errors.New("timeout")}
	if !Retriable(te) {
		t.Error("transport errors must be retriable")
	}
	if !Retriable(errors.Join(errors.New("wrapped"), te)) {
		t.Error("wrapped transport errors must be retriable")
	}
	if Retriable(&VendorRejection{Op: "order placement", Remarks: "INVALID SCHEME"}) {
		t.Error("vendor rejections must not be retriable")
	}
	if Retriable(ErrAuthFailed) {
		t.Error("auth refusal must not be retriable")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	ve := &ValidationError{Fields: []string{"trans_no", "order_val"}}
	want := "invalid order fields: trans_no, order_val"
	if ve.Error() != want {
		t.Errorf("message = %q, want %q", ve.Error(), want)
	}
}
