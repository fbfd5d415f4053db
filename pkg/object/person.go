package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a point in time together with the UTC offset it was recorded in.
type Date struct {
	Seconds       int64
	OffsetMinutes int
}

// DateFromTime converts t, keeping its zone offset.
func DateFromTime(t time.Time) Date {
	_, offset := t.Zone()
	return Date{Seconds: t.Unix(), OffsetMinutes: offset / 60}
}

// Time returns d as a time.Time in a fixed zone of d's offset.
func (d Date) Time() time.Time {
	return time.Unix(d.Seconds, 0).In(time.FixedZone("", d.OffsetMinutes*60))
}

// Person identifies an author, committer or tagger.
type Person struct {
	Name  string
	Email string
	When  Date
}

// String encodes p as "Name <email> seconds +HHMM". Characters that would
// break the encoding are stripped from name and email rather than rejected.
func (p Person) String() string {
	return fmt.Sprintf("%s <%s> %d %s", sanitizeIdent(p.Name), sanitizeIdent(p.Email), p.When.Seconds, formatOffset(p.When.OffsetMinutes))
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f || r == '<' || r == '>' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// maxOffsetMinutes is the largest offset the four-digit HHMM form holds.
const maxOffsetMinutes = 99*60 + 59

// formatOffset clamps offsets the HHMM form cannot hold, so every encoded
// offset parses back.
func formatOffset(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	if minutes > maxOffsetMinutes {
		minutes = maxOffsetMinutes
	}
	if minutes == 0 {
		sign = '+'
	}
	return fmt.Sprintf("%c%02d%02d", sign, minutes/60, minutes%60)
}

// ParsePerson decodes the output of Person.String.
func ParsePerson(s string) (Person, error) {
	gt := strings.LastIndexByte(s, '>')
	if gt < 0 {
		return Person{}, invalidf("person", "missing '>' in %q", s)
	}
	lt := strings.LastIndexByte(s[:gt], '<')
	if lt < 0 {
		return Person{}, invalidf("person", "missing '<' in %q", s)
	}
	p := Person{
		Name:  strings.TrimSpace(s[:lt]),
		Email: s[lt+1 : gt],
	}

	fields := strings.Fields(s[gt+1:])
	if len(fields) != 2 {
		return Person{}, invalidf("person", "want seconds and offset after email in %q", s)
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Person{}, invalidf("person", "bad timestamp %q: %v", fields[0], err)
	}
	offset, err := parseOffset(fields[1])
	if err != nil {
		return Person{}, err
	}
	p.When = Date{Seconds: secs, OffsetMinutes: offset}
	return p, nil
}

func parseOffset(s string) (int, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return 0, invalidf("person", "bad zone offset %q", s)
	}
	for i := 1; i < 5; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, invalidf("person", "bad zone offset %q", s)
		}
	}
	hh, err1 := strconv.Atoi(s[1:3])
	mm, err2 := strconv.Atoi(s[3:5])
	if err1 != nil || err2 != nil || mm >= 60 {
		return 0, invalidf("person", "bad zone offset %q", s)
	}
	minutes := hh*60 + mm
	// The encoder never writes a negative zero, so accepting it would let
	// two encodings decode to the same Person.
	if s[0] == '-' && minutes == 0 {
		return 0, invalidf("person", "bad zone offset %q", s)
	}
	if s[0] == '-' {
		minutes = -minutes
	}
	return minutes, nil
}
