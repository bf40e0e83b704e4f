package main

import "github.com/collabcore/collabcore/cmd/collabcore"

func main() {
	cmd.Execute()
}
