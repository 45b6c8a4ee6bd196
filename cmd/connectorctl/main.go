package main

import (
	"fmt"
	"os"

	"surplus-backend/cmd/connectorctl/cmd"
)

func main() {
	baseUrl, ok := os.LookupEnv("CONNECTORD_BASE_URL")
	if !ok {
		fmt.Println("You should specify the base url of the connector daemon in the environment variable CONNECTORD_BASE_URL.")
		os.Exit(1)
	}
	cmd.BaseUrl = baseUrl

	cmd.Execute()
}
