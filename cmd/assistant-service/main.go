package main

import (
	"os"

	"github.com/diaria/diaria-assistant/assistantservice"
)

func main() {
	if err := assistantservice.Run(); err != nil {
		os.Exit(1)
	}
}
