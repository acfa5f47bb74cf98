package main

import "github.com/nextlevelbuilder/wopr/cmd"

func main() {
	cmd.Execute()
}
