package wire

import (
	"bytes"
	"testing"
)

func TestConnectPacketRoundTrip(t *testing.T) {
	cp := ConnectPacket{
		ProtocolVersion: ProtocolVersion,
		Features:        FeatureChecksumEnabled,
		CanonicalAddr:   "10.0.0.5:6789",
	}
	var buf bytes.Buffer
	if err := WriteConnectPacket(&buf, cp); err != nil {
		t.Fatalf("WriteConnectPacket: %v", err)
	}
	got, err := ReadConnectPacket(&buf)
	if err != nil {
		t.Fatalf("ReadConnectPacket: %v", err)
	}
	if got != cp {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, cp)
	}
}

func TestConnectPacketCompatible(t *testing.T) {
	local := ConnectPacket{ProtocolVersion: ProtocolVersion}
	sameMajor := ConnectPacket{ProtocolVersion: ProtocolVersion | 0x1}
	differentMajor := ConnectPacket{ProtocolVersion: ProtocolVersion + (1 << 16)}

	if !Compatible(local, sameMajor) {
		t.Fatalf("expected compatible: differing only in low feature-revision bits")
	}
	if Compatible(local, differentMajor) {
		t.Fatalf("expected incompatible: differing major version")
	}
}

func TestNegotiateFeatures(t *testing.T) {
	local := ConnectPacket{Features: FeatureChecksumEnabled | 0x2}
	remote := ConnectPacket{Features: FeatureChecksumEnabled}
	if got := NegotiateFeatures(local, remote); got != FeatureChecksumEnabled {
		t.Fatalf("NegotiateFeatures = %x, want %x", got, FeatureChecksumEnabled)
	}
}

func TestWriteConnectPacketRejectsOversizedAddr(t *testing.T) {
	cp := ConnectPacket{ProtocolVersion: ProtocolVersion, CanonicalAddr: string(make([]byte, maxCanonicalAddrLen+1))}
	if err := WriteConnectPacket(new(bytes.Buffer), cp); err == nil {
		t.Fatalf("expected WriteConnectPacket to reject an oversized canonical address")
	}
}
