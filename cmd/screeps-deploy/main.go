package main

import "github.com/oshokin/screeps-deploy/cmd/screeps-deploy/cmd"

func main() {
	cmd.Execute()
}
