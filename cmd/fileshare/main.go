package main

import "github.com/rudransh-shrivastava/p2p-fileshare/internal/cli"

func main() {
	cli.Execute()
}
