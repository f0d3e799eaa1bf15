package main

import (
	"fmt"
	"os"

	"github.com/ta-061/tee-flow-inspector/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
