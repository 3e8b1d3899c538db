package main

import "github.com/softflow/deskpro/internal/cli"

func main() {
	cli.Execute()
}
