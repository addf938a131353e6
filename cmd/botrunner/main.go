package main

import "github.com/vietddude/botrunner/internal/cli"

func main() {
	cli.Execute()
}
