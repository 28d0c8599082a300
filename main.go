package main

import "github.com/decentraminds/osmosis-streaming-driver/cmd"

func main() {
	cmd.Execute()
}
