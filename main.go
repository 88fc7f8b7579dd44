package main

import (
	"github.com/kyudori/docbridge/cmd"
)

func main() {
	cmd.Execute()
}
