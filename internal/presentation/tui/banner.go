package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Moon Hollow.
func PrintBanner() {
	p := termenv.ColorProfile()
	// Moonlit gradient, indigo down to pale silver
	s1 := termenv.String("   __  __                    _   _       _ _               ").Foreground(p.Color("#6366f1"))
	s2 := termenv.String("  |  \\/  | ___   ___  _ __ | | | | ___ | | | _____      __").Foreground(p.Color("#818cf8"))
	s3 := termenv.String("  | |\\/| |/ _ \\ / _ \\| '_ \\| |_| |/ _ \\| | |/ _ \\ \\ /\\ / /").Foreground(p.Color("#a5b4fc"))
	s4 := termenv.String("  | |  | | (_) | (_) | | | |  _  | (_) | | | (_) \\ V  V / ").Foreground(p.Color("#c7d2fe"))
	s5 := termenv.String("  |_|  |_|\\___/ \\___/|_| |_|_| |_|\\___/|_|_|\\___/ \\_/\\_/  ").Foreground(p.Color("#e0e7ff"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println()
}
