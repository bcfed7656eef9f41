package main

import "github.com/cosmos/ibc-relayer/cmd"

func main() {
	cmd.Execute()
}
