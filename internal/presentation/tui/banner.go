package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the furrow ASCII banner with a field-to-harvest
// gradient.
func PrintBanner() {
	p := termenv.ColorProfile()
	s1 := termenv.String("   __").Foreground(p.Color("#a3e635"))
	s2 := termenv.String("  / _|_   _ _ __ _ __ _____      __").Foreground(p.Color("#84cc16"))
	s3 := termenv.String(" | |_| | | | '__| '__/ _ \\ \\ /\\ / /").Foreground(p.Color("#65a30d"))
	s4 := termenv.String(" |  _| |_| | |  | | | (_) \\ V  V /").Foreground(p.Color("#ca8a04"))
	s5 := termenv.String(" |_|  \\__,_|_|  |_|  \\___/ \\_/\\_/").Foreground(p.Color("#92400e"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println()
}
