package main

import (
	"github.com/finsightlab/finsight/internal/cli"
)

func main() {
	cli.Execute()
}
