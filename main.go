package main

import "github.com/caleslawncare/quote-gateway/cmd"

func main() {
	cmd.Execute()
}
