package textprep

import (
	"math/rand"
	"strings"
	"testing"
	"testing/quick"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bold and blank line", "**Apply** neem oil.\n\nWater daily.", "Apply neem oil. Water daily."},
		{"heading and bullets", "## Steps\n- Plough the field\n- Sow seeds", "Steps. Plough the field. Sow seeds."},
		{"table", "| Crop | Price |\n|---|---|\n| Rice | 2100 |", "Crop, Price. Rice, 2100."},
		{"emoji", "Rain expected 🌧️ today!", "Rain expected today!"},
		{"link and code", "See [the scheme](https://pmkisan.gov.in) using `pm-kisan`.", "See the scheme using pm-kisan."},
		{"italics", "Use _organic_ manure *now*", "Use organic manure now."},
		{"clause endings kept", "Remember:\nwater early", "Remember: water early."},
		{"tamil keeps danda", "நீர் பாய்ச்சவும்।\nஉரம் இடவும்", "நீர் பாய்ச்சவும்। உரம் இடவும்."},
		{"empty", "  \n\n ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSentences(t *testing.T) {
	got := Sentences("Apply neem oil. Water daily! Dose is 3.5 kg? Yes")
	want := []string{"Apply neem oil. ", "Water daily! ", "Dose is 3.5 kg? ", "Yes"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkPacksGreedily(t *testing.T) {
	s := strings.Repeat("a", 9) + ". " // 11 runes
	text := strings.Repeat(s, 5)
	chunks := Chunk(text, 25)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != s+s || chunks[2] != s {
		t.Fatalf("unexpected packing: %q", chunks)
	}
}

func TestChunkKeepsOversizedSentenceWhole(t *testing.T) {
	long := strings.Repeat("word ", 80) + "end."
	text := "Short one. " + long + " Tail."
	chunks := Chunk(text, 50)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[1], "word word") || !strings.HasSuffix(strings.TrimSpace(chunks[1]), "end.") {
		t.Fatalf("oversized sentence was split: %q", chunks[1])
	}
}

func TestChunkEmpty(t *testing.T) {
	if got := Chunk("", 10); len(got) != 0 {
		t.Fatalf("expected no chunks, got %q", got)
	}
	if got := Prepare(" \n ", 10); len(got) != 0 {
		t.Fatalf("expected no prepared chunks, got %q", got)
	}
}

func TestPrepareScenarioSingleChunk(t *testing.T) {
	got := Prepare("**Apply** neem oil.\n\nWater daily.", DefaultChunkChars)
	if len(got) != 1 || got[0] != "Apply neem oil. Water daily." {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

var alphabet = []rune("ab த్ . !?।\n")

func randomText(r *rand.Rand) string {
	n := r.Intn(400)
	b := make([]rune, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(b)
}

func TestChunkRoundTripProperty(t *testing.T) {
	f := func(seed int64, max uint8) bool {
		text := randomText(rand.New(rand.NewSource(seed)))
		return strings.Join(Chunk(text, int(max)%120+1), "") == text
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Fatal(err)
	}
}

func TestChunkBoundaryProperty(t *testing.T) {
	f := func(seed int64, max uint8) bool {
		limit := int(max)%120 + 1
		text := Sanitize(randomText(rand.New(rand.NewSource(seed))))
		for _, c := range Chunk(text, limit) {
			if utf8.RuneCountInString(c) > limit && len(Sentences(c)) != 1 {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Fatal(err)
	}
}
