package main

import "github.com/redubhq/redub/internal/cli"

func main() {
	cli.Main()
}
