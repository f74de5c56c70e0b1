package models

import (
	"net/url"
	"testing"
)

func TestParseCheckoutContext(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  CheckoutContext
	}{
		{
			name:  "full query",
			query: "amount=29.99&currency=usd&eventId=42&title=Summer+Fest&ticketId=3&ticketName=VIP",
			want: CheckoutContext{
				AmountCents: 2999,
				Currency:    "USD",
				EventID:     42,
				EventTitle:  "Summer Fest",
				TicketID:    3,
				TicketName:  "VIP",
			},
		},
		{
			name:  "empty query defaults",
			query: "",
			want:  CheckoutContext{Currency: DefaultCurrency},
		},
		{
			name:  "eventTitle alias",
			query: "amount=10&eventTitle=Jazz",
			want:  CheckoutContext{AmountCents: 1000, Currency: "USD", EventTitle: "Jazz"},
		},
		{
			name:  "malformed values fall back to zero",
			query: "amount=abc&eventId=-4&ticketId=x",
			want:  CheckoutContext{Currency: "USD"},
		},
		{
			name:  "negative amount is free",
			query: "amount=-5",
			want:  CheckoutContext{Currency: "USD"},
		},
		{
			name:  "rounds to the nearest cent",
			query: "amount=0.016",
			want:  CheckoutContext{AmountCents: 2, Currency: "USD"},
		},
		{
			name:  "largest accepted amount",
			query: "amount=999999.99",
			want:  CheckoutContext{AmountCents: MaxAmountCents, Currency: "USD"},
		},
		{
			name:  "amount above the ceiling is malformed",
			query: "amount=1000000",
			want:  CheckoutContext{Currency: "USD"},
		},
		{
			name:  "overflowing amount is malformed",
			query: "amount=1e17&eventId=7&ticketId=3",
			want:  CheckoutContext{Currency: "USD", EventID: 7, TicketID: 3},
		},
		{
			name:  "amount below one cent is malformed",
			query: "amount=0.004",
			want:  CheckoutContext{Currency: "USD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery() error = %v", err)
			}
			if got := ParseCheckoutContext(q); got != tt.want {
				t.Errorf("ParseCheckoutContext() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCheckoutContext_Key(t *testing.T) {
	a := CheckoutContext{AmountCents: 2500, Currency: "USD", EventID: 1, TicketName: "GA"}
	b := CheckoutContext{AmountCents: 2500, Currency: "usd", EventID: 1, TicketName: "VIP"}
	if a.Key() != b.Key() {
		t.Errorf("Key() should ignore ticket name and currency case: %v != %v", a.Key(), b.Key())
	}
	if got := a.Key().String(); got != "2500:usd:1" {
		t.Errorf("IntentKey.String() = %q, want %q", got, "2500:usd:1")
	}

	c := CheckoutContext{AmountCents: 2600, Currency: "USD", EventID: 1}
	if a.Key() == c.Key() {
		t.Error("Key() should change with the amount")
	}
}

func TestCheckoutContext_Amounts(t *testing.T) {
	tests := []struct {
		name        string
		ctx         CheckoutContext
		wantAmount  string
		wantDisplay string
		wantFree    bool
	}{
		{name: "dollars", ctx: CheckoutContext{AmountCents: 2999, Currency: "USD"}, wantAmount: "29.99", wantDisplay: "$29.99"},
		{name: "pounds", ctx: CheckoutContext{AmountCents: 500, Currency: "gbp"}, wantAmount: "5.00", wantDisplay: "£5.00"},
		{name: "unknown currency", ctx: CheckoutContext{AmountCents: 1234, Currency: "XYZ"}, wantAmount: "12.34", wantDisplay: "12.34 XYZ"},
		{name: "free", ctx: CheckoutContext{Currency: "USD"}, wantAmount: "0.00", wantDisplay: "$0.00", wantFree: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Amount(); got != tt.wantAmount {
				t.Errorf("Amount() = %q, want %q", got, tt.wantAmount)
			}
			if got := tt.ctx.DisplayAmount(); got != tt.wantDisplay {
				t.Errorf("DisplayAmount() = %q, want %q", got, tt.wantDisplay)
			}
			if got := tt.ctx.IsFree(); got != tt.wantFree {
				t.Errorf("IsFree() = %v, want %v", got, tt.wantFree)
			}
		})
	}
}

func TestCheckoutContext_QueryRoundTrip(t *testing.T) {
	ctx := CheckoutContext{
		AmountCents: 4550,
		Currency:    "EUR",
		EventID:     9,
		EventTitle:  "Opera Night",
		TicketID:    2,
		TicketName:  "Balcony",
	}
	if got := ParseCheckoutContext(ctx.Query()); got != ctx {
		t.Errorf("ParseCheckoutContext(Query()) = %+v, want %+v", got, ctx)
	}
}

func TestCheckoutContext_SuccessQuery(t *testing.T) {
	ctx := CheckoutContext{AmountCents: 100, Currency: "USD", EventID: 9, EventTitle: "Opera Night", TicketName: "Balcony"}
	q := ctx.SuccessQuery()

	if got := q.Get("eventTitle"); got != "Opera Night" {
		t.Errorf("eventTitle = %q", got)
	}
	if got := q.Get("ticketName"); got != "Balcony" {
		t.Errorf("ticketName = %q", got)
	}
	if q.Has("amount") {
		t.Error("success query should not carry the amount")
	}
	if q.Has("ticketId") {
		t.Error("zero ticket id should be omitted")
	}
}
