package main

import (
	"github.com/sidkik/blogctl/cmd"
	"github.com/sidkik/blogctl/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
