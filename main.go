package main

import (
	"os"

	"github.com/asaidimu/go-rulesengine/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
