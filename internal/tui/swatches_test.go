package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/evanschultz/weekplan/internal/domain"
)

func TestPaletteSwatchesListsEveryColor(t *testing.T) {
	out := ansi.Strip(PaletteSwatches(domain.ThemeDark, false, "Buy milk"))
	for _, want := range []string{"dark", "card none", "card blue", "card orange", "today", "drop indicator", "Buy milk"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in swatches, got:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "Buy milk"); got != len(domain.Colors())+6 {
		t.Fatalf("sample rows = %d, want %d", got, len(domain.Colors())+6)
	}
}
