package main

import (
	"wishwatch-backend/cmd/wishwatch-cli/cmd"
)

func main() {
	cmd.Execute()
}
