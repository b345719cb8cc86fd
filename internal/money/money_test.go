package money

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Amount
	}{
		{"12.34", 1234},
		{"12", 1200},
		{"0.05", 5},
		{".50", 50},
		{"12.345", 1234}, // third digit rounds down
		{"12.346", 1235}, // third digit rounds up
		{"10.50", 1050},
		{"5.25", 525},
	}

	for _, c := range cases {
		got, err := Parse(c.in)

		if err != nil {
			t.Fatalf("Parse(%q) error: %v", c.in, err)
		}

		if got != c.want {
			t.Fatalf("Parse(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-1.00", "+2.00", "1.2.3", "1,50", "12a.00"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q) expected error", in)
		}
	}
}

func TestString(t *testing.T) {
	cases := []struct {
		in   Amount
		want string
	}{
		{1575, "15.75"},
		{5, "0.05"},
		{0, "0.00"},
		{-250, "-2.50"},
	}

	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Fatalf("Amount(%d).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAdd_Exact(t *testing.T) {
	total := Amount(0)

	// many small additions must not drift
	for i := 0; i < 1000; i++ {
		total = total.Add(MustParse("0.01"))
	}

	if total != 1000 {
		t.Fatalf("expected 10.00, got %s", total)
	}
}
