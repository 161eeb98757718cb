package main

import "github.com/audiolibrelab/dialmix/cmd"

func main() {
	cmd.Execute()
}
