package jobs

import (
	"errors"
	"testing"
)

func TestEncodeDecode_BudgetAlertCheck(t *testing.T) {
	payload := BudgetAlertCheckPayload{
		UserID: "user-123",
		Month:  "2025-07",
	}

	b, err := EncodePayload(JobBudgetAlertCheck, payload)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	decoded, err := DecodePayload(JobBudgetAlertCheck, b)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	got, ok := decoded.(BudgetAlertCheckPayload)
	if !ok {
		t.Fatalf("decoded payload has type %T", decoded)
	}
	if got != payload {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, payload)
	}
}

func TestEncodePayload_TypeMismatch(t *testing.T) {
	_, err := EncodePayload(JobBudgetAlertCheck, MonthlyDigestPayload{UserID: "u", Month: "2025-07"})
	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("got %v, want ErrPayloadTypeMismatch", err)
	}
}

func TestEncodePayload_MissingFields(t *testing.T) {
	cases := []BudgetAlertCheckPayload{
		{UserID: "", Month: "2025-07"},
		{UserID: "user-123", Month: ""},
		{UserID: "  ", Month: "2025-07"},
	}

	for _, p := range cases {
		if _, err := EncodePayload(JobBudgetAlertCheck, p); !errors.Is(err, ErrInvalidJobPayload) {
			t.Errorf("payload %+v: got %v, want ErrInvalidJobPayload", p, err)
		}
	}
}

func TestDecodePayload_Invalid(t *testing.T) {
	if _, err := DecodePayload(JobType("unknown"), []byte(`{}`)); !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("unknown type: got %v", err)
	}
	if _, err := DecodePayload(JobBudgetAlertCheck, nil); !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("empty payload: got %v", err)
	}
	if _, err := DecodePayload(JobBudgetAlertCheck, []byte(`not-json`)); !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("bad json: got %v", err)
	}
}
