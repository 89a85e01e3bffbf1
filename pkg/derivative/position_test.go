package derivative

import "testing"

func TestPositionAddressStable(t *testing.T) {
	d, err := Parse("ETH-28FEB25-4000-C")
	if err != nil {
		t.Fatal(err)
	}
	h := d.Hash()

	long1 := PositionAddress(h, Long)
	long2 := PositionAddress(h, Long)
	if long1 != long2 {
		t.Error("long address not stable across calls")
	}

	short := PositionAddress(h, Short)
	if long1 == short {
		t.Error("long and short addresses collide")
	}
}

func TestPositionAddressDistinctPerDerivative(t *testing.T) {
	call, _ := Parse("ETH-28FEB25-4000-C")
	put, _ := Parse("ETH-28FEB25-4000-P")

	if PositionAddress(call.Hash(), Long) == PositionAddress(put.Hash(), Long) {
		t.Error("different derivatives derive the same long address")
	}
}
