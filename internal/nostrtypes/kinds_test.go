package nostrtypes

import "testing"

func TestIsEphemeral(t *testing.T) {
	cases := []struct {
		kind int
		want bool
	}{
		{0, false},
		{1, false},
		{4199, false},
		{31933, false},
		{19999, false},
		{20000, true},
		{24010, true},
		{29999, true},
		{30000, false},
	}
	for _, c := range cases {
		if got := IsEphemeral(c.kind); got != c.want {
			t.Errorf("IsEphemeral(%d) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestCoordinateString(t *testing.T) {
	c := Coordinate{Kind: 31933, Pubkey: "abc123", DTag: "proj1"}
	want := "31933:abc123:proj1"
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("31933:abc123:proj1")
	if err != nil {
		t.Fatalf("ParseCoordinate error: %v", err)
	}
	want := Coordinate{Kind: 31933, Pubkey: "abc123", DTag: "proj1"}
	if c != want {
		t.Errorf("ParseCoordinate = %+v, want %+v", c, want)
	}
}

func TestParseCoordinate_DTagWithColons(t *testing.T) {
	c, err := ParseCoordinate("31933:abc123:proj:sub:slug")
	if err != nil {
		t.Fatalf("ParseCoordinate error: %v", err)
	}
	if c.DTag != "proj:sub:slug" {
		t.Errorf("DTag = %q, want %q", c.DTag, "proj:sub:slug")
	}
}

func TestParseCoordinate_Malformed(t *testing.T) {
	cases := []string{"", "31933", "31933:abc123", "notanumber:abc123:proj1", "31933::proj1"}
	for _, s := range cases {
		if _, err := ParseCoordinate(s); err == nil {
			t.Errorf("ParseCoordinate(%q) expected error, got nil", s)
		}
	}
}

func TestCoordinateRoundTrip(t *testing.T) {
	c := Coordinate{Kind: 4199, Pubkey: "deadbeef", DTag: "my-agent"}
	parsed, err := ParseCoordinate(c.String())
	if err != nil {
		t.Fatalf("ParseCoordinate error: %v", err)
	}
	if parsed != c {
		t.Errorf("round trip = %+v, want %+v", parsed, c)
	}
}

func TestATag(t *testing.T) {
	c := Coordinate{Kind: 31933, Pubkey: "abc", DTag: "proj1"}
	tag := ATag(c)
	want := []string{"a", "31933:abc:proj1"}
	if len(tag) != 2 || tag[0] != want[0] || tag[1] != want[1] {
		t.Errorf("ATag = %v, want %v", tag, want)
	}
}

func TestETag(t *testing.T) {
	tag := ETag("eventid", "wss://relay.example.com", "root")
	want := []string{"e", "eventid", "wss://relay.example.com", "root"}
	for i := range want {
		if tag[i] != want[i] {
			t.Errorf("ETag = %v, want %v", tag, want)
		}
	}
}
