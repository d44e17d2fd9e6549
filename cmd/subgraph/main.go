package main

import "github.com/dbsmedya/waitforgraph/cmd/subgraph/cmd"

func main() {
	cmd.Execute()
}
