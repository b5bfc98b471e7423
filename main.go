package main

import (
	"log"

	"github.com/sjzar/mcpd/cmd/mcpd"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	mcpd.Execute()
}
