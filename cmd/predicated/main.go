package main

import "price-predicates/internal/cli"

func main() {
	cli.Execute()
}
