package main

import "github.com/danieldekerlegandevolve/sound-designer-sub002/cmd"

func main() {
	cmd.Execute()
}
