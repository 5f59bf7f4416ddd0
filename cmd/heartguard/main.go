package main

import "github.com/heartguard/heartguard/cmd/heartguard/cmd"

func main() {
	cmd.Execute()
}
