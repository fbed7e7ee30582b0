package main

import "github.com/quillmind/governd/cmd"

func main() {
	cmd.Execute()
}
