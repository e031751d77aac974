package main

import (
	"salesync/cmd/server/cmd"
)

func main() {
	cmd.Execute()
}
