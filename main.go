package main

import "pacfall/internal/pacfall"

func main() {
	pacfall.Main()
}
