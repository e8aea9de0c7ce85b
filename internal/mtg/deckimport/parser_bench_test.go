package deckimport

import (
	"fmt"
	"strings"
	"testing"
)

func benchDecklist(n int) string {
	var b strings.Builder
	b.WriteString("Deck\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d Card Number %d (M10) %d\n", i%4+1, i, i+1)
	}
	b.WriteString("\nSideboard\n")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "1 Sideboard Card %d [CMR] *F*\n", i)
	}
	return b.String()
}

func BenchmarkParse(b *testing.B) {
	for _, size := range []int{60, 100, 1000} {
		input := benchDecklist(size)
		b.Run(fmt.Sprintf("cards=%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Parse(input); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkParseLine(b *testing.B) {
	lines := []string{
		"4 Lightning Bolt",
		"4x Lightning Bolt (M10) 146",
		"Counterspell x2",
		"1 Fire / Ice [MH2] 290 *F*",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseLine(lines[i%len(lines)]); err != nil {
			b.Fatal(err)
		}
	}
}
