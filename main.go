package main

import "github.com/vibast-solutions/ms-go-3ds-gateway/cmd"

func main() {
	cmd.Execute()
}
