package main

import "github.com/mvp-joe/typeq/internal/cli"

func main() {
	cli.Execute()
}
