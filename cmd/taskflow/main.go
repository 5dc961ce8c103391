package main

import (
	"os"

	"taskflow/internal/cli"
)

var Version = "dev"

// @title                       taskflow API
// @version                     1.0
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
