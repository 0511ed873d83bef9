package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stripe/stripe-go/v84"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "unauthorized"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeMethodNotAllowed, status: http.StatusMethodNotAllowed, publicMsg: "method not allowed"},
		{code: CodeRunInProgress, status: http.StatusConflict, publicMsg: "a billing run is already in progress", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeTimeout, status: http.StatusGatewayTimeout, publicMsg: "request timed out", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing customer id")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing customer id" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "customer_id"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("lock held")
	wrapped := Wrap(CodeRunInProgress, cause, "billing run in progress")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeRunInProgress {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if Wrap(CodeInternal, nil, "x").Unwrap() != nil {
		t.Fatalf("wrap of nil should not carry a cause")
	}
}

func TestPublicMessage(t *testing.T) {
	if got := New(CodeNotFound, "customer missing").PublicMessage(); got != "customer missing" {
		t.Fatalf("not found should expose its message, got %q", got)
	}
	if got := New(CodeNotFound, "").PublicMessage(); got != "resource not found" {
		t.Fatalf("empty message should fall back, got %q", got)
	}
	if got := Wrap(CodeDependency, stdErrors.New("dial tcp"), "stripe down").PublicMessage(); got != "dependency unavailable" {
		t.Fatalf("dependency errors must not expose internals, got %q", got)
	}
}

func TestClassify(t *testing.T) {
	typed := New(CodeValidation, "bad month")
	if got := Classify(fmt.Errorf("handler: %w", typed)); got != typed {
		t.Fatalf("expected the typed error back, got %v", got)
	}
	if got := Classify(fmt.Errorf("fetch prices: %w", context.DeadlineExceeded)); got.Code() != CodeTimeout {
		t.Fatalf("expected timeout, got %s", got.Code())
	}
	plain := stdErrors.New("boom")
	got := Classify(plain)
	if got.Code() != CodeInternal || !stdErrors.Is(got, plain) {
		t.Fatalf("expected internal wrapping the cause, got %v", got)
	}
	if Classify(nil).Code() != CodeInternal {
		t.Fatalf("nil should classify as internal")
	}
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "customer missing"))
	typed := As(err)
	if typed == nil || typed.Code() != CodeNotFound {
		t.Fatalf("expected typed not found error, got %v", typed)
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain errors carry no code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should be nil")
	}
}

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "storage_billing_holding_period_key", TableName: "storage_billing"}
	dump := Dump(Wrap(CodeInternal, pgErr, "insert ledger row"))

	if dump.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "storage_billing_holding_period_key" {
		t.Fatalf("unexpected pg details %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two links in chain, got %d", len(dump.Chain))
	}
	fields := dump.Fields()
	if fields["pg_table"] != "storage_billing" {
		t.Fatalf("expected pg_table field, got %v", fields["pg_table"])
	}
	if _, ok := fields["stripe_code"]; ok {
		t.Fatalf("empty stripe fields should be omitted")
	}
}

func TestDumpCapturesStripeDetails(t *testing.T) {
	stripeErr := &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, RequestID: "req_123"}
	dump := Dump(fmt.Errorf("pay invoice: %w", stripeErr))

	if dump.StripeCode != string(stripe.ErrorCodeCardDeclined) {
		t.Fatalf("expected card_declined, got %q", dump.StripeCode)
	}
	if dump.StripeRequestID != "req_123" {
		t.Fatalf("expected request id, got %q", dump.StripeRequestID)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
