package main

import (
	"carbonstream/internal/cli"
)

func main() {
	cli.Execute()
}
