package main

import "github.com/oshokin/sensor-node/cmd/sensor-node/cmd"

func main() {
	cmd.Execute()
}
