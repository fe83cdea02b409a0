package main

import "btc-event-study/internal/cli"

func main() {
	cli.Execute()
}
