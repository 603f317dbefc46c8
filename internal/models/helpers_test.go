package models

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "scam", "scam"},
		{"uppercase", "Investment Scam", "investment_scam"},
		{"hyphens", "crypto-pump", "crypto_pump"},
		{"special chars stripped", "Free iPhone!!!", "free_iphone"},
		{"numbers preserved", "win 100 dollars", "win_100_dollars"},
		{"consecutive spaces collapse", "romance   bait", "romance_bait"},
		{"leading separators trimmed", "  _lure", "lure"},
		{"trailing separators trimmed", "lure__ ", "lure"},
		{"empty string", "", ""},
		{"only special chars", "!@#$%", ""},
		{"unicode stripped", "café scam", "caf_scam"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRecordIDString(t *testing.T) {
	id := NewRecordID("decoy", "dark_lion_x1y2")
	got, err := RecordIDString(id)
	if err != nil {
		t.Fatalf("RecordIDString returned error: %v", err)
	}
	if got != "dark_lion_x1y2" {
		t.Errorf("RecordIDString = %q, want %q", got, "dark_lion_x1y2")
	}

	id.ID = 42
	if _, err := RecordIDString(id); err == nil {
		t.Error("expected error for non-string record ID")
	}
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{"fraud", ClassFraud, true},
		{"Classification: BOT.", ClassBot, true},
		{"I think this user is genuine, they answered consistently", ClassGenuine, true},
		{"no idea", "", false},
		{"", "", false},
		{"fraudulent", "", false},
		{"Not genuine. Likely a bot.", ClassBot, true},
		{"The user is not genuine, this is fraud", ClassFraud, true},
		{"This isn't a bot, the user is genuine", ClassGenuine, true},
		{"Probably genuine but somewhat suspicious", ClassSuspicious, true},
		{"Definitely not genuine", ClassSuspicious, true},
		{"No fraud here, not a bot either", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseClassification(tt.in)
			if ok != tt.found || got != tt.want {
				t.Errorf("ParseClassification(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestSessionKeyIsUnambiguous(t *testing.T) {
	pairs := [][2][2]string{
		{{"x|y", "z"}, {"x", "y|z"}},
		{{"1:a", "b"}, {"1", "a|b"}},
	}
	for _, p := range pairs {
		a := SessionKey(p[0][0], p[0][1])
		b := SessionKey(p[1][0], p[1][1])
		if a == b {
			t.Errorf("SessionKey(%q, %q) and SessionKey(%q, %q) both = %q", p[0][0], p[0][1], p[1][0], p[1][1], a)
		}
	}
}
