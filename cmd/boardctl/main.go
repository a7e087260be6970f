package main

import "github.com/robin-raq/collabboard/internal/interfaces/boardctl"

func main() {
	boardctl.Execute()
}
