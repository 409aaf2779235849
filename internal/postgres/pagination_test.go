package postgres

import (
	"errors"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{Seq: 42, ID: "9f2c"}

	s, err := EncodeCursor(in)
	if err != nil {
		t.Fatalf("EncodeCursor: %v", err)
	}

	out, err := DecodeCursor(s)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if out == nil || out.Seq != in.Seq || out.ID != in.ID {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestDecodeCursor_Empty(t *testing.T) {
	cur, err := DecodeCursor("")
	if err != nil || cur != nil {
		t.Fatalf("empty cursor should decode to nil, got %+v, %v", cur, err)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, s := range []string{"%%%", "bm90IGpzb24"} {
		if _, err := DecodeCursor(s); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("DecodeCursor(%q): expected ErrInvalidCursor, got %v", s, err)
		}
	}
}
