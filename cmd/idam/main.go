package main

import "github.com/venicegeo/pz-idam/cmd/idam/cmd"

func main() {
	cmd.Execute()
}
