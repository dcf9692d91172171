package ident

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckAccepts(t *testing.T) {
	valid := []string{
		"users",
		"Users2",
		"user_accounts",
		"audit-log",
		"t",
		"_staging",
		"tbl-2024-01",
		"naïve", // letters outside ASCII are still letters
	}
	for _, name := range valid {
		if err := Check(name); err != nil {
			t.Errorf("Check(%q) = %v, want nil", name, err)
		}
	}
}

func TestCheckRejects(t *testing.T) {
	invalid := []string{
		"",
		"users;",
		"drop table users",
		"a.b",
		"a b",
		"users--",
		"users'",
		`users"`,
		"users)",
		"users*",
		"sqlite_master;--",
	}
	for _, name := range invalid {
		err := Check(name)
		if err == nil {
			t.Errorf("Check(%q) = nil, want error", name)
			continue
		}
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("Check(%q) = %v, want ErrInvalidIdentifier", name, err)
		}
	}
}

func TestCheckRejectsHyphenOnlyLookalikes(t *testing.T) {
	// Hyphen is allowed; the em dash and minus sign are not.
	if err := Check("a-b"); err != nil {
		t.Fatalf("Check(a-b) failed: %v", err)
	}
	for _, name := range []string{"a—b", "a−b"} {
		if err := Check(name); err == nil {
			t.Errorf("Check(%q) = nil, want error", name)
		}
	}
}

func TestCheckErrorNamesOffender(t *testing.T) {
	err := Check("bad;name")
	if err == nil {
		t.Fatal("Check(bad;name) = nil, want error")
	}
	if !strings.Contains(err.Error(), "bad;name") {
		t.Errorf("error %q does not mention the offending name", err)
	}
}

func TestQuote(t *testing.T) {
	cases := map[string]string{
		"users":      `"users"`,
		`odd"name`:   `"odd""name"`,
		"with space": `"with space"`,
	}
	for in, want := range cases {
		if got := Quote(in); got != want {
			t.Errorf("Quote(%q) = %s, want %s", in, got, want)
		}
	}
}
