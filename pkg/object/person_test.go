package object

import (
	"errors"
	"testing"
	"time"
)

func TestPersonRoundTrip(t *testing.T) {
	for _, offset := range []int{0, 60, -300, 330, -(12*60 + 45)} {
		p := Person{Name: "Ada Lovelace", Email: "ada@example.com", When: Date{Seconds: 1234567890, OffsetMinutes: offset}}
		got, err := ParsePerson(p.String())
		if err != nil {
			t.Fatalf("ParsePerson(%q): %v", p.String(), err)
		}
		if got != p {
			t.Fatalf("round-trip mismatch: got %+v, want %+v", got, p)
		}
	}
}

func TestPersonOffsetEncoding(t *testing.T) {
	p := Person{Name: "a", Email: "b", When: Date{Seconds: 5, OffsetMinutes: -90}}
	if got, want := p.String(), "a <b> 5 -0130"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestPersonClampsOutOfRangeOffset(t *testing.T) {
	for _, tc := range []struct {
		offset int
		want   string
		parsed int
	}{
		{offset: 6000, want: "n <e> 1 +9959", parsed: 5999},
		{offset: -100000, want: "n <e> 1 -9959", parsed: -5999},
		{offset: 5999, want: "n <e> 1 +9959", parsed: 5999},
	} {
		p := Person{Name: "n", Email: "e", When: Date{Seconds: 1, OffsetMinutes: tc.offset}}
		if got := p.String(); got != tc.want {
			t.Fatalf("String(offset %d) = %q, want %q", tc.offset, got, tc.want)
		}
		got, err := ParsePerson(p.String())
		if err != nil {
			t.Fatalf("ParsePerson(%q): %v", p.String(), err)
		}
		if got.When.OffsetMinutes != tc.parsed {
			t.Fatalf("parsed offset = %d, want %d", got.When.OffsetMinutes, tc.parsed)
		}
	}
}

func TestPersonSanitizes(t *testing.T) {
	p := Person{Name: " Evil <Name>\n", Email: "<x@y>\x00", When: Date{Seconds: 1}}
	s := p.String()
	if want := "Evil Name <x@y> 1 +0000"; s != want {
		t.Fatalf("String() = %q, want %q", s, want)
	}
	got, err := ParsePerson(s)
	if err != nil {
		t.Fatalf("ParsePerson: %v", err)
	}
	if got.Name != "Evil Name" || got.Email != "x@y" {
		t.Fatalf("unexpected parse result %+v", got)
	}
}

func TestParsePersonRejectsBadOffset(t *testing.T) {
	for _, s := range []string{
		"a <b> 1 0000",
		"a <b> 1 +00",
		"a <b> 1 ++100",
		"a <b> 1 +0a00",
		"a <b> 1 +0075",
		"a <b> 1 -0000",
		"a <b> x +0000",
		"a <b> 1",
	} {
		if _, err := ParsePerson(s); !errors.Is(err, ErrInvalidData) {
			t.Errorf("ParsePerson(%q) = %v, want ErrInvalidData", s, err)
		}
	}
}

func TestDateFromTime(t *testing.T) {
	loc := time.FixedZone("", -7*3600)
	d := DateFromTime(time.Date(2024, 1, 2, 3, 4, 5, 0, loc))
	if d.OffsetMinutes != -420 {
		t.Fatalf("OffsetMinutes = %d, want -420", d.OffsetMinutes)
	}
	if !d.Time().Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, loc)) {
		t.Fatalf("Time() = %v", d.Time())
	}
}

func TestValidateHash(t *testing.T) {
	if err := ValidateHash(EmptyTreeHash); err != nil {
		t.Fatalf("ValidateHash(empty tree): %v", err)
	}
	for _, h := range []Hash{"", "abc", Hash("4B825DC642CB6EB9A060E54BF8D69288FBEE4904"), Hash("zz825dc642cb6eb9a060e54bf8d69288fbee4904")} {
		if err := ValidateHash(h); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateHash(%q) = %v, want ErrValidation", h, err)
		}
	}
}
