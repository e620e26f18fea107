package main

import "github.com/tupyy/ztp-bootstrap/cmd"

func main() {
	cmd.Execute()
}
