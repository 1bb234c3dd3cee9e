package main

import "testing"

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestEnvStr(t *testing.T) {
	t.Setenv("BUNDLED_TEST_VALUE", "x")
	if got := envStr("BUNDLED_TEST_VALUE", "d"); got != "x" {
		t.Fatalf("got %q", got)
	}
	t.Setenv("BUNDLED_TEST_VALUE", "")
	if got := envStr("BUNDLED_TEST_VALUE", "d"); got != "d" {
		t.Fatalf("empty env should fall back, got %q", got)
	}
}
