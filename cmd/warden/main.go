package main

import "github.com/minhvu/warden/internal/cli"

func main() {
	cli.Execute()
}
