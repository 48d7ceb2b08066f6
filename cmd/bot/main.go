package main

import (
	"flight-deals-bot/internal/cli"
)

func main() {
	cli.Execute()
}
