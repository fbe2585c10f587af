package langdetect

import (
	"strings"
	"testing"
)

func TestDetectTamilRange(t *testing.T) {
	var b strings.Builder
	for r := rune(0x0B85); r <= 0x0B94; r++ {
		b.WriteRune(r)
	}
	if got := Detect(b.String()); got != "ta-IN" {
		t.Fatalf("Tamil code points resolved to %q", got)
	}
}

func TestDetectASCIIUsesDefault(t *testing.T) {
	if got := Detect("Apply neem oil. Water daily."); got != Default {
		t.Fatalf("ASCII resolved to %q, want %q", got, Default)
	}
	if got := DetectOr("hello", "hi-IN"); got != "hi-IN" {
		t.Fatalf("fallback ignored: %q", got)
	}
}

func TestDetectScripts(t *testing.T) {
	cases := map[string]string{
		"गेहूं की बुवाई":        "hi-IN",
		"ধান চাষ":              "bn-IN",
		"ਕਣਕ":                  "pa-IN",
		"ઘઉં":                  "gu-IN",
		"ଧାନ":                  "or-IN",
		"నీరు పెట్టండి":        "te-IN",
		"ನೀರು":                 "kn-IN",
		"വെള്ളം":               "ml-IN",
		"پانی":                 "ur-IN",
		"Price today: ₹2100 🌾": "en-IN",
	}
	for in, want := range cases {
		if got := Detect(in); got != want {
			t.Errorf("Detect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectPriorityOrder(t *testing.T) {
	// Mixed text: Devanagari is checked before Tamil.
	if got := Detect("நீர் and पानी"); got != "hi-IN" {
		t.Fatalf("expected Devanagari to win, got %q", got)
	}
}

func TestNormalizeAndRegional(t *testing.T) {
	if got := Normalize("ta_in"); got != "ta-IN" {
		t.Fatalf("Normalize = %q", got)
	}
	if got := Normalize("!!"); got != Default {
		t.Fatalf("bad tag should fall back, got %q", got)
	}
	if got := Regional("kn"); got != "kn-IN" {
		t.Fatalf("Regional(kn) = %q", got)
	}
	if got := Regional("en-US"); got != "en-US" {
		t.Fatalf("Regional kept explicit region wrong: %q", got)
	}
	if got := Base("ml-IN"); got != "ml" {
		t.Fatalf("Base = %q", got)
	}
}
