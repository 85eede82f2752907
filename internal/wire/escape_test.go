package wire

import (
	"bytes"
	"math/rand"
	"testing"
)

func escapeAll(t *testing.T, in []byte) []byte {
	t.Helper()
	out := make([]byte, EscapedLen(in))
	n, err := Escape(in, out)
	if err != nil {
		t.Fatalf("Escape: %v", err)
	}
	return out[:n]
}

func TestEscapeTable(t *testing.T) {
	cases := []struct {
		in, want []byte
	}{
		{[]byte{0xC0}, []byte{0xDB, 0xDC}},
		{[]byte{0xDB}, []byte{0xDB, 0xDD}},
		{[]byte{0x01, 0x02}, []byte{0x01, 0x02}},
		{[]byte{0xC0, 0xDB, 0x10}, []byte{0xDB, 0xDC, 0xDB, 0xDD, 0x10}},
	}
	for _, c := range cases {
		got := escapeAll(t, c.in)
		if !bytes.Equal(got, c.want) {
			t.Errorf("Escape(% X) = % X, want % X", c.in, got, c.want)
		}
	}
}

func TestUnescapeInverse(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 256; i++ {
		buf := make([]byte, r.Intn(64))
		for j := range buf {
			buf[j] = byte(r.Intn(256))
		}
		escaped := escapeAll(t, buf)
		out := make([]byte, len(buf)+len(escaped)) // generous
		n, err := Unescape(escaped, out)
		if err != nil {
			t.Fatalf("Unescape: %v", err)
		}
		if !bytes.Equal(out[:n], buf) {
			t.Fatalf("round trip mismatch: in=% X got=% X", buf, out[:n])
		}
	}
}

func TestUnescapeBadSequence(t *testing.T) {
	out := make([]byte, 8)
	if _, err := Unescape([]byte{0xDB, 0x00}, out); err != ErrEscape {
		t.Fatalf("expected ErrEscape for bad second byte, got %v", err)
	}
	if _, err := Unescape([]byte{0x01, 0xDB}, out); err != ErrEscape {
		t.Fatalf("expected ErrEscape for trailing 0xDB, got %v", err)
	}
}

func TestEscapeBufferSmall(t *testing.T) {
	out := make([]byte, 1)
	if _, err := Escape([]byte{0xC0}, out); err != ErrBufferSmall {
		t.Fatalf("expected ErrBufferSmall, got %v", err)
	}
}
