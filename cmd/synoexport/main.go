package main

import "os"

func main() {
	if err := Execute(); err != nil {
		printError("Error: %v", err)
		os.Exit(1)
	}
}
