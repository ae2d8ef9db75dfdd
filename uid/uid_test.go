package uid

import "testing"

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []string{
		"0123456789abcdeffedcba9876543210",
		"00000000000000000000000000000000"[:32],
		"ffffffffffffffffffffffffffffffff",
	}
	for _, s := range cases {
		u, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := u.String(); got != s {
			t.Fatalf("round trip: Parse(%q).String() = %q", s, got)
		}
	}
}

func TestParseAcceptsUppercase(t *testing.T) {
	u, err := Parse("0123456789ABCDEFFEDCBA9876543210")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := u.String(); got != "0123456789abcdeffedcba9876543210" {
		t.Fatalf("expected canonical lowercase, got %q", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"too-short",
		"0123456789abcdeffedcba987654321",   // 31 chars
		"0123456789abcdeffedcba98765432100", // 33 chars
		"zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",  // not hex
	}
	for _, s := range cases {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q): expected error, got nil", s)
		}
	}
}

func TestClassifyWellKnown(t *testing.T) {
	for tok := WLTOKEN(0); tok < wltokenCount; tok++ {
		u := WellKnownUID(tok)
		got, ok := Classify(u)
		if !ok {
			t.Fatalf("Classify(%v) = not well-known, want %v", u, tok)
		}
		if got != tok {
			t.Fatalf("Classify(%v) = %v, want %v", u, got, tok)
		}
		if !IsWellKnown(u) {
			t.Fatalf("IsWellKnown(%v) = false, want true", u)
		}
	}
}

func TestClassifyEphemeral(t *testing.T) {
	for i := 0; i < 1000; i++ {
		u := New()
		if _, ok := Classify(u); ok {
			t.Fatalf("New() produced a well-known-looking UID: %v", u)
		}
		if IsWellKnown(u) {
			t.Fatalf("IsWellKnown(%v) = true for an ephemeral UID", u)
		}
	}
}

func TestClassifyOutsideReservedRange(t *testing.T) {
	u := UID{First: uint64(wltokenCount), Second: 0}
	if _, ok := Classify(u); ok {
		t.Fatalf("Classify(%v) = well-known, want ephemeral (first just past reserved range)", u)
	}
	u2 := UID{First: 0, Second: 1}
	if _, ok := Classify(u2); ok {
		t.Fatalf("Classify(%v) = well-known, want ephemeral (non-zero second)", u2)
	}
}

func TestWellKnownStringNames(t *testing.T) {
	if WLTOKENPingPacket.String() != "PingPacket" {
		t.Fatalf("unexpected name: %s", WLTOKENPingPacket.String())
	}
	if WLTOKEN(-1).String() == "PingPacket" {
		t.Fatalf("out-of-range token should not resolve to a real name")
	}
}
