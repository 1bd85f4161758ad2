package main

import (
	"log"

	"github.com/devsmilefactory/moversfinder-sub010/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
