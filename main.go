package main

import "github.com/theirongolddev/toolmeter/cmd"

func main() {
	cmd.Execute()
}
