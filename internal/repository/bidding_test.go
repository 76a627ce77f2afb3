package repository

import (
	"errors"
	"testing"

	"github.com/mmeshcher/bidmarket-system/internal/model"
)

func TestEvaluateBid(t *testing.T) {
	tests := []struct {
		name    string
		own     *model.Bid
		highest *model.Bid
		price   int64
		wantErr error
	}{
		{
			name:  "первая ставка без конкурентов",
			price: 10000,
		},
		{
			name:    "первая ставка выше текущего максимума",
			highest: &model.Bid{Price: 10000},
			price:   15000,
		},
		{
			name:    "первая ставка ниже текущего максимума",
			highest: &model.Bid{Price: 15000},
			price:   14000,
			wantErr: ErrBidBelowHighest,
		},
		{
			name:    "первая ставка равна текущему максимуму",
			highest: &model.Bid{Price: 15000},
			price:   15000,
			wantErr: ErrBidBelowHighest,
		},
		{
			name:  "повышение собственной ставки",
			own:   &model.Bid{Price: 10000},
			price: 20000,
		},
		{
			name:    "повторная ставка не выше собственной",
			own:     &model.Bid{Price: 20000},
			price:   20000,
			wantErr: ErrBidBelowOwn,
		},
		{
			name: "повышение собственной ставки ниже чужого максимума допустимо",
			own:  &model.Bid{Price: 10000},
			// Чужой максимум не ограничивает повышение собственной ставки.
			highest: &model.Bid{Price: 50000},
			price:   12000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluateBid(tt.own, tt.highest, tt.price)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("evaluateBid() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("evaluateBid() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvaluateBid_AuctionSequence(t *testing.T) {
	// Два участника торгуются: 100, затем 150; попытка 140 отклоняется, 200 проходит.
	if err := evaluateBid(nil, nil, 10000); err != nil {
		t.Fatalf("first bid 100: %v", err)
	}
	if err := evaluateBid(nil, &model.Bid{Price: 10000}, 15000); err != nil {
		t.Fatalf("second bidder 150: %v", err)
	}
	if err := evaluateBid(nil, &model.Bid{Price: 15000}, 14000); !errors.Is(err, ErrBidBelowHighest) {
		t.Fatalf("bid 140 after 150: error = %v, want ErrBidBelowHighest", err)
	}
	if err := evaluateBid(&model.Bid{Price: 10000}, &model.Bid{Price: 15000}, 20000); err != nil {
		t.Fatalf("raise to 200: %v", err)
	}
}

func TestSplitCommission(t *testing.T) {
	tests := []struct {
		name           string
		price          int64
		rate           int64
		wantCommission int64
		wantFinal      int64
	}{
		{name: "десять процентов", price: 20000, rate: 10, wantCommission: 2000, wantFinal: 18000},
		{name: "нулевая комиссия", price: 20000, rate: 0, wantCommission: 0, wantFinal: 20000},
		{name: "вся сумма в комиссию", price: 20000, rate: 100, wantCommission: 20000, wantFinal: 0},
		{name: "округление вниз", price: 9999, rate: 33, wantCommission: 3299, wantFinal: 6700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commission, final := splitCommission(tt.price, tt.rate)
			if commission != tt.wantCommission {
				t.Fatalf("commission = %d, want %d", commission, tt.wantCommission)
			}
			if final != tt.wantFinal {
				t.Fatalf("final = %d, want %d", final, tt.wantFinal)
			}
		})
	}
}

func TestSplitCommission_PartsAlwaysSumToPrice(t *testing.T) {
	prices := []int64{1, 99, 100, 9999, 123456789}
	for _, price := range prices {
		for rate := int64(0); rate <= 100; rate++ {
			commission, final := splitCommission(price, rate)
			if commission+final != price {
				t.Fatalf("price %d rate %d: %d + %d != %d", price, rate, commission, final, price)
			}
			if commission < 0 || final < 0 {
				t.Fatalf("price %d rate %d: negative part", price, rate)
			}
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	if !isConnectionError(errors.New("dial tcp: connection refused")) {
		t.Fatalf("connection refused must be treated as connection error")
	}
	if isConnectionError(errors.New("syntax error")) {
		t.Fatalf("syntax error must not be treated as connection error")
	}
}
