package derivative

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	d, err := Parse("ETH-28FEB25-4000-C")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if d.Margin.Cmp(Wad) != 0 {
		t.Errorf("margin = %s, want 1e18", d.Margin)
	}

	wantStrike := new(big.Int).Mul(big.NewInt(4000), Wad)
	if d.Strike().Cmp(wantStrike) != 0 {
		t.Errorf("strike = %s, want %s", d.Strike(), wantStrike)
	}
	if d.Collateralization().Cmp(Wad) != 0 {
		t.Errorf("collateralization = %s, want 1e18", d.Collateralization())
	}

	maturity := time.Unix(d.EndTime, 0).UTC()
	want := time.Date(2025, time.February, 28, 8, 0, 0, 0, time.UTC)
	if !maturity.Equal(want) {
		t.Errorf("maturity = %s, want %s", maturity, want)
	}

	if d.SyntheticID != syntheticByType[OptionCall] {
		t.Errorf("synthetic = %s, want call synthetic", d.SyntheticID.Hex())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "too few segments", in: "ETH-28FEB25-4000", want: ErrInvalidInstrument},
		{name: "too many segments", in: "ETH-28FEB25-4000-C-X", want: ErrInvalidInstrument},
		{name: "empty segment", in: "ETH--4000-C", want: ErrInvalidInstrument},
		{name: "unknown asset", in: "DOGE-28FEB25-4000-C", want: ErrUnsupportedAsset},
		{name: "bad option type", in: "ETH-28FEB25-4000-X", want: ErrInvalidOptionType},
		{name: "bad maturity", in: "ETH-99ZZZ99-4000-C", want: ErrInvalidInstrument},
		{name: "bad strike", in: "ETH-28FEB25-zero-C", want: ErrInvalidInstrument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) err = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestHashDeterministic(t *testing.T) {
	d1, err := Parse("ETH-28FEB25-4000-C")
	if err != nil {
		t.Fatal(err)
	}
	d2, err := Parse("ETH-28FEB25-4000-C")
	if err != nil {
		t.Fatal(err)
	}

	if d1.Hash() != d2.Hash() {
		t.Error("same instrument parsed twice hashes differently")
	}

	put, err := Parse("ETH-28FEB25-4000-P")
	if err != nil {
		t.Fatal(err)
	}
	if d1.Hash() == put.Hash() {
		t.Error("call and put hash identically")
	}

	other, err := Parse("ETH-28FEB25-4100-C")
	if err != nil {
		t.Fatal(err)
	}
	if d1.Hash() == other.Hash() {
		t.Error("different strikes hash identically")
	}
}

func TestInitialMargin(t *testing.T) {
	d, err := Parse("ETH-28FEB25-4000-C")
	if err != nil {
		t.Fatal(err)
	}
	long, short := d.InitialMargin()
	if long.Sign() != 0 {
		t.Errorf("long margin = %s, want 0", long)
	}
	// 100% collateralization: short margin equals the nominal.
	if short.Cmp(Wad) != 0 {
		t.Errorf("short margin = %s, want 1e18", short)
	}
}

func TestParseMaturitySingleDigitDay(t *testing.T) {
	d, err := Parse("ETH-7MAR25-4000-C")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := time.Date(2025, time.March, 7, 8, 0, 0, 0, time.UTC)
	if got := time.Unix(d.EndTime, 0).UTC(); !got.Equal(want) {
		t.Errorf("maturity = %s, want %s", got, want)
	}
}
