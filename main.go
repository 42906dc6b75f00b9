package main

import "kajiya/internal/kajiya"

func main() {
	kajiya.Main()
}
