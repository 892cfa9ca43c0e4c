package main

import "github.com/oshokin/sensor-node/cmd/node-observer/cmd"

func main() {
	cmd.Execute()
}
